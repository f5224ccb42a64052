package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// CallLogs lists the calls of a store.
func (c *Conn) CallLogs(ctx context.Context, storeID int64, filter CallLogFilter) ([]CallLog, error) {
	q := url.Values{"store": {formatID(storeID)}}
	setIf(q, "search", filter.Search)
	setIf(q, "call_type", filter.CallType)
	setIf(q, "issue", filter.Issue)
	setIf(q, "date", filter.Date)
	var out []CallLog
	err := c.do(ctx, request{name: "call.logs", method: http.MethodGet, path: "/api/v1/call/call-logs/", query: q}, &out)
	return out, err
}

// CallTrends loads the call volume series for a range such as "today" or
// "this-week".
func (c *Conn) CallTrends(ctx context.Context, storeID int64, rangeKey string) (CallTrends, error) {
	q := url.Values{"store": {formatID(storeID)}, "range": {rangeKey}}
	var out CallTrends
	err := c.do(ctx, request{name: "call.trends", method: http.MethodGet, path: "/api/v1/call/call-trends/", query: q}, &out)
	return out, err
}

// StoreSummary loads the dashboard counters. The backend answers with either
// an object or a one element array.
func (c *Conn) StoreSummary(ctx context.Context, storeID int64, rangeKey string) (StoreSummary, error) {
	q := url.Values{"store_id": {formatID(storeID)}, "range": {rangeKey}}
	var raw json.RawMessage
	if err := c.do(ctx, request{name: "call.summary", method: http.MethodGet, path: "/api/v1/call/store-summary/", query: q}, &raw); err != nil {
		return StoreSummary{}, err
	}
	return decodeSummary(raw)
}

func decodeSummary(raw json.RawMessage) (StoreSummary, error) {
	var out StoreSummary
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if raw[0] == '[' {
		var list []StoreSummary
		if err := json.Unmarshal(raw, &list); err != nil {
			return out, err
		}
		if len(list) > 0 {
			out = list[0]
		}
		return out, nil
	}
	err := json.Unmarshal(raw, &out)
	return out, err
}

// Appointments lists the bookings of a store.
func (c *Conn) Appointments(ctx context.Context, storeID int64) ([]Appointment, error) {
	q := url.Values{"store": {formatID(storeID)}}
	var out []Appointment
	err := c.do(ctx, request{name: "appointments.list", method: http.MethodGet, path: "/api/v1/appointments/", query: q}, &out)
	return out, err
}
