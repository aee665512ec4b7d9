package model

import (
	"encoding/json"
	"testing"
)

func TestIsOverdue(t *testing.T) {
	returned := MustDate("2024-01-20")
	tests := []struct {
		name    string
		lending Lending
		asOf    Date
		want    bool
	}{
		{
			name:    "open and past planned return",
			lending: Lending{DateLending: MustDate("2024-01-01"), DateReturnPlanned: MustDate("2024-01-10")},
			asOf:    MustDate("2024-01-11"),
			want:    true,
		},
		{
			name:    "open on the planned day",
			lending: Lending{DateLending: MustDate("2024-01-01"), DateReturnPlanned: MustDate("2024-01-10")},
			asOf:    MustDate("2024-01-10"),
			want:    false,
		},
		{
			name: "closed is never overdue",
			lending: Lending{
				DateLending:       MustDate("2024-01-01"),
				DateReturnPlanned: MustDate("2024-01-10"),
				DateReturn:        &returned,
			},
			asOf: MustDate("2030-01-01"),
			want: false,
		},
	}

	for _, tt := range tests {
		if got := IsOverdue(tt.lending, tt.asOf); got != tt.want {
			t.Errorf("%s: IsOverdue = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var l Lending
	body := `{"reader_id":1,"employee_id":2,"date_lending":"2024-01-10","date_return_planned":"2024-02-10","date_return":null,"items":[5,7]}`
	if err := json.Unmarshal([]byte(body), &l); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if l.DateLending.String() != "2024-01-10" {
		t.Errorf("date_lending = %s", l.DateLending)
	}
	if !l.Open() {
		t.Error("expected open lending")
	}

	out, err := json.Marshal(l.DateReturnPlanned)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `"2024-02-10"` {
		t.Errorf("marshalled %s", out)
	}

	if err := json.Unmarshal([]byte(`{"date_lending":"10.01.2024"}`), &l); err == nil {
		t.Error("expected error for malformed date")
	}
}
