package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "present", want: StatusPresent},
		{in: "Hadir", want: StatusPresent},
		{in: "SAKIT", want: StatusSick},
		{in: " izin ", want: StatusPermit},
		{in: "permit", want: StatusPermit},
		{in: "Alpa", want: StatusAbsent},
		{in: "absent", want: StatusAbsent},
		{in: "late", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusLabelRoundTrip(t *testing.T) {
	for _, st := range Statuses() {
		parsed, err := ParseStatus(st.Label())
		require.NoError(t, err)
		assert.Equal(t, st, parsed)
	}
}

func TestDateJSON(t *testing.T) {
	var rec AttendanceRecord
	require.NoError(t, json.Unmarshal([]byte(`{"student_id": 7, "date": "2024-07-15T00:00:00Z", "status": "Sakit"}`), &rec))
	assert.Equal(t, ID("7"), rec.StudentID)
	assert.Equal(t, "2024-07-15", rec.Date.String())
	assert.Equal(t, StatusSick, rec.Status)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"student_id":"7","date":"2024-07-15","status":"sick"}`, string(out))
}

func TestToday(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	now := time.Date(2024, 7, 15, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-07-16", Today(now, jakarta).String())
	assert.Equal(t, "2024-07-15", Today(now, time.UTC).String())
}

func TestPhotosAcceptsEncodedString(t *testing.T) {
	var album Album
	raw := `{"id": 1, "name": "Pentas", "photos": "[{\"id\":\"a\",\"path\":\"1/a.jpg\"}]"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &album))
	require.Len(t, album.Photos, 1)
	assert.Equal(t, "1/a.jpg", album.Photos[0].Path)
}

func TestStoredStatusOutsideVocabulary(t *testing.T) {
	var recs []AttendanceRecord
	require.NoError(t, json.Unmarshal([]byte(`[
		{"student_id": 1, "date": "2024-07-15", "status": "Hadir"},
		{"student_id": 2, "date": "2024-07-15", "status": null},
		{"student_id": 3, "date": "2024-07-15", "status": "terlambat"}
	]`), &recs))
	require.Len(t, recs, 3)
	assert.Equal(t, StatusPresent, recs[0].Status)
	assert.Equal(t, Status(""), recs[1].Status)
	assert.False(t, recs[1].Status.Valid())
	assert.Equal(t, Status("terlambat"), recs[2].Status)
	assert.False(t, recs[2].Status.Valid())
	assert.Equal(t, "terlambat", recs[2].Status.Label())
}
