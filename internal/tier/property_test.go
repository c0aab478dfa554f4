package tier

import (
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/require"
)

// frameAge generates a random age within a few hundred days.
type frameAge struct {
	Age time.Duration
}

func (frameAge) Generate(rand *rand.Rand, _ int) reflect.Value {
	return reflect.ValueOf(frameAge{
		Age: time.Duration(rand.Int63n(int64(400 * 24 * time.Hour))),
	})
}

// Classification depends only on age: shifting both clocks by the same
// offset never changes the result.
func TestPropertyClassifyTranslationInvariant(t *testing.T) {
	c, err := NewClassifier(DefaultBoundaries())
	require.NoError(t, err)

	now := time.Now().UTC()
	property := func(a frameAge, offsetHours uint16) bool {
		offset := time.Duration(offsetHours) * time.Hour
		t1, err1 := c.Classify(now, now.Add(-a.Age))
		t2, err2 := c.Classify(now.Add(offset), now.Add(offset).Add(-a.Age))
		return err1 == nil && err2 == nil && t1 == t2
	}
	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 2000}))
}

// Tiers are monotonic in age: an older frame never classifies hotter.
func TestPropertyClassifyMonotonic(t *testing.T) {
	c, err := NewClassifier(DefaultBoundaries())
	require.NoError(t, err)

	now := time.Now().UTC()
	property := func(a, b frameAge) bool {
		younger, older := a.Age, b.Age
		if younger > older {
			younger, older = older, younger
		}
		tYoung, err1 := c.Classify(now, now.Add(-younger))
		tOld, err2 := c.Classify(now, now.Add(-older))
		return err1 == nil && err2 == nil && !tYoung.Colder(tOld)
	}
	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 2000}))
}
