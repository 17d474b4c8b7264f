package pyout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnStyleMerge(t *testing.T) {
	t.Parallel()
	missing := "-"
	base := &ColumnStyle{Align: AlignRight, Missing: &missing}
	over := &ColumnStyle{Align: AlignCenter, Bold: Const(true)}

	out := base.merge(over)
	assert.Equal(t, AlignCenter, out.Align)
	assert.Equal(t, &missing, out.Missing)
	require.NotNil(t, out.Bold)

	// Zero values in the overlay do not clear the base.
	out = base.merge(&ColumnStyle{})
	assert.Equal(t, AlignRight, out.Align)
	assert.Equal(t, &missing, out.Missing)
}

func TestColumnStyleMergeNilReceiver(t *testing.T) {
	t.Parallel()
	var base *ColumnStyle
	out := base.merge(&ColumnStyle{Align: AlignRight})
	require.NotNil(t, out)
	assert.Equal(t, AlignRight, out.Align)

	out = base.merge(nil)
	require.NotNil(t, out)
	assert.Equal(t, AlignLeft, out.Align)
}

func TestStyleAdopt(t *testing.T) {
	t.Parallel()
	sep := "|"
	base := &Style{
		Width: 40,
		Columns: map[string]*ColumnStyle{
			"status": {Align: AlignRight},
			"name":   {Bold: Const(true)},
		},
	}
	over := &Style{
		Separator: &sep,
		Columns: map[string]*ColumnStyle{
			"status": {Color: Const("red")},
		},
	}

	out := base.adopt(over)
	assert.Equal(t, 40, out.Width)
	assert.Equal(t, "|", out.separator())
	assert.Equal(t, AlignRight, out.Columns["status"].Align)
	require.NotNil(t, out.Columns["status"].Color)
	require.NotNil(t, out.Columns["name"].Bold)

	// Neither input changed.
	assert.Nil(t, base.Columns["status"].Color)
	assert.Nil(t, base.Separator)
}

func TestSeparatorDefault(t *testing.T) {
	t.Parallel()
	var s *Style
	assert.Equal(t, " ", s.separator())
	assert.Equal(t, " ", (&Style{}).separator())
}

func TestValidateOK(t *testing.T) {
	t.Parallel()
	s := &Style{
		Header: &HeaderStyle{Underline: Const(true)},
		Columns: map[string]*ColumnStyle{
			"status": {
				Color: Lookup(map[any]string{"ok": "green", "failed": "red"}),
				Width: &Width{Max: 11},
			},
			"pct": {
				Color: &Rule[string]{Interval: []IntervalCase[string]{
					{Min: ptr(80.0), Value: "green"},
				}},
			},
		},
	}
	assert.NoError(t, s.Validate())
}

func TestValidateNil(t *testing.T) {
	t.Parallel()
	var s *Style
	assert.NoError(t, s.Validate())
}

func TestValidateFixedVsMinMax(t *testing.T) {
	t.Parallel()
	s := &Style{Columns: map[string]*ColumnStyle{
		"name": {Width: &Width{Fixed: 10, Min: 2}},
	}}
	err := s.Validate()
	require.ErrorIs(t, err, ErrInvalidStyle)
	var se *StyleError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "name", se.Column)
	assert.Equal(t, "width", se.Option)
}

func TestValidateMinExceedsMax(t *testing.T) {
	t.Parallel()
	s := &Style{Columns: map[string]*ColumnStyle{
		"name": {Width: &Width{Min: 10, Max: 5}},
	}}
	assert.ErrorIs(t, s.Validate(), ErrInvalidStyle)
}

func TestValidateUnknownColor(t *testing.T) {
	t.Parallel()
	s := &Style{Columns: map[string]*ColumnStyle{
		"status": {Color: Const("chartreuse")},
	}}
	err := s.Validate()
	require.ErrorIs(t, err, ErrInvalidStyle)
	assert.Contains(t, err.Error(), "chartreuse")
}

func TestValidateRuleNeedsOneBranch(t *testing.T) {
	t.Parallel()
	s := &Style{Columns: map[string]*ColumnStyle{
		"status": {Color: &Rule[string]{
			Value:  ptr("green"),
			Lookup: map[any]string{"x": "red"},
		}},
	}}
	assert.ErrorIs(t, s.Validate(), ErrInvalidStyle)

	s = &Style{Columns: map[string]*ColumnStyle{
		"status": {Bold: &Rule[bool]{}},
	}}
	assert.ErrorIs(t, s.Validate(), ErrInvalidStyle)
}

func TestValidateBadPattern(t *testing.T) {
	t.Parallel()
	s := &Style{Columns: map[string]*ColumnStyle{
		"status": {Bold: &Rule[bool]{Regexp: []RegexpCase[bool]{
			{Pattern: "(", Value: true},
		}}},
	}}
	assert.ErrorIs(t, s.Validate(), ErrInvalidStyle)
}

func TestValidateDelayedGroupExclusive(t *testing.T) {
	t.Parallel()
	s := &Style{Columns: map[string]*ColumnStyle{
		"status": {Delayed: true, DelayGroup: "g"},
	}}
	assert.ErrorIs(t, s.Validate(), ErrInvalidStyle)
}

func TestHeaderColumnStyle(t *testing.T) {
	t.Parallel()
	cs := &ColumnStyle{Align: AlignRight, Width: &Width{Fixed: 8}, Bold: Const(true)}
	h := &HeaderStyle{Underline: Const(true)}
	out := headerColumnStyle(cs, h)
	assert.Equal(t, AlignRight, out.Align)
	assert.Equal(t, cs.Width, out.Width)
	assert.Nil(t, out.Bold)
	require.NotNil(t, out.Underline)
}

func ptr[T any](v T) *T { return &v }
