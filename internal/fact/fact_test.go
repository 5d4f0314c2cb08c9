package fact

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1990-03-15", "1990-03-15", false},
		{"19900315", "1990-03-15", false},
		{"--0315", "", true},
		{"not-a-date", "", true},
		{"1990-13-01", "", true},
	}
	for _, tt := range tests {
		d, err := ParseDate(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, d.String())
	}
}

func TestDateCompact(t *testing.T) {
	d := Date{Year: 1990, Month: time.March, Day: 5}
	assert.Equal(t, "19900305", d.Compact())
}

func TestEffectiveDateJSON(t *testing.T) {
	tests := []struct {
		name string
		in   *EffectiveDate
	}{
		{"instant", EffectiveAtInstant(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC))},
		{"date_only", EffectiveAtDate(Date{Year: 2024, Month: 1, Day: 15})},
		{"unknown", EffectiveAtUnknown()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)

			var back EffectiveDate
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, *tt.in, back)
		})
	}
}

func TestEffectiveDateRejectsUnknownKind(t *testing.T) {
	var e EffectiveDate
	err := json.Unmarshal([]byte(`{"kind":"fuzzy"}`), &e)
	assert.Error(t, err)
}

func TestRecordingContextJSON(t *testing.T) {
	manual, err := json.Marshal(Manual())
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"manual"}`, string(manual))

	imported, err := json.Marshal(Imported("carddav-put", "uid-1"))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"kind":"imported","source_name":"carddav-put","original_uid":"uid-1"}`,
		string(imported))
}

func TestNewDefaults(t *testing.T) {
	nf := New(uuid.Nil, Note("hi"))
	assert.Equal(t, Certain, nf.Confidence)
	assert.Equal(t, "manual", nf.RecordingContext.Kind)
	assert.Nil(t, nf.EffectiveAt)
	assert.Empty(t, nf.Tags)
}

func TestParseSubjectKind(t *testing.T) {
	for _, ok := range []string{"person", "organization", "group"} {
		_, err := ParseSubjectKind(ok)
		assert.NoError(t, err)
	}
	_, err := ParseSubjectKind("robot")
	var uk *UnknownKindError
	require.ErrorAs(t, err, &uk)
	assert.Equal(t, "robot", uk.Kind)
}
