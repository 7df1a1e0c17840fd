package storage

import (
	"encoding/json"
	"fmt"
)

// recordColumns holds the JSON-encoded collection columns of a SourceRecord
type recordColumns struct {
	emails        string
	contacts      string
	jobPostings   string
	externalURLs  string
	redirectChain string
}

func encodeRecordColumns(r *SourceRecord) (recordColumns, error) {
	var cols recordColumns
	fields := []struct {
		dst *string
		v   any
	}{
		{&cols.emails, nonNil(r.Emails)},
		{&cols.contacts, nonNil(r.Contacts)},
		{&cols.jobPostings, nonNil(r.JobPostings)},
		{&cols.externalURLs, nonNil(r.ExternalURLs)},
		{&cols.redirectChain, nonNil(r.RedirectChain)},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.v)
		if err != nil {
			return cols, fmt.Errorf("failed to encode record %s: %w", r.ID, err)
		}
		*f.dst = string(b)
	}
	return cols, nil
}

func (cols recordColumns) decodeInto(r *SourceRecord) error {
	fields := []struct {
		src string
		dst any
	}{
		{cols.emails, &r.Emails},
		{cols.contacts, &r.Contacts},
		{cols.jobPostings, &r.JobPostings},
		{cols.externalURLs, &r.ExternalURLs},
		{cols.redirectChain, &r.RedirectChain},
	}
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return fmt.Errorf("failed to decode record %s: %w", r.ID, err)
		}
	}
	return nil
}

// nonNil keeps empty collections encoded as [] rather than null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxBatchSummaries {
		return MaxBatchSummaries
	}
	return limit
}
