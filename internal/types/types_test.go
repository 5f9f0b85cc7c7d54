package types

import (
	"encoding/json"
	"testing"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Score
	}{
		{"integer", `7`, 7},
		{"fraction truncates", `7.9`, 7},
		{"numeric string", `"4"`, 4},
		{"padded string", `" 6 "`, 6},
		{"non numeric string", `"viel"`, 0},
		{"bool", `true`, 0},
		{"null", `null`, 0},
		{"above range", `11`, 10},
		{"below range", `-3`, 0},
		{"huge number", `1e20`, 10},
		{"huge exponent", `1e300`, 10},
		{"huge string", `"99999999999999999999"`, 10},
		{"huge negative", `-1e300`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Score
			require.NoError(t, json.Unmarshal([]byte(tt.input), &s))
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestUpdateReportRequestClampsLargeScore(t *testing.T) {
	var req UpdateReportRequest
	require.NoError(t, json.Unmarshal([]byte(`{"nerv_score": 1e20}`), &req))

	report := &database.Report{NervScore: 3}
	report.Apply(req.ToUpdate())

	assert.Equal(t, database.MaxScore, report.NervScore)
}

func TestUpdateReportRequestOmittedFields(t *testing.T) {
	var req UpdateReportRequest
	require.NoError(t, json.Unmarshal([]byte(`{"company_name": "ACME"}`), &req))

	u := req.ToUpdate()
	require.NotNil(t, u.CompanyName)
	assert.Equal(t, "ACME", *u.CompanyName)
	assert.Nil(t, u.NervScore)
	assert.Nil(t, u.PhoneNumber)
}

func TestNewListResponse(t *testing.T) {
	resp := NewListResponse[string](nil)
	assert.Equal(t, 0, resp.Total)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items": [], "total": 0}`, string(data))
}
