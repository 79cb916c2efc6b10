package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// AuditEntry is one immutable audit record: which operation touched which
// store key, when, and the payload that was written (or, for deletes, the
// last payload that existed).
//
// Entries are keyed in the audit store by their decimal sequence id; ids
// form a strictly increasing range bracketed by the "_min_id"/"_max_id"
// sentinels, so a reader can page through the trail without scanning.
type AuditEntry struct {
	ID        int64
	Op        string
	Timestamp int64 // milliseconds since the Unix epoch
	Key       string
	Payload   Record
}

// appendAudit records one operation in the audit store. Failures are
// never swallowed: when auditing is on, a failed append fails the
// operation that caused it.
func (d *Database) appendAudit(op, key string, payload Record) error {
	if d.audit == nil {
		return nil
	}

	maxStr, ok, err := d.audit.Get(auditMaxKey)
	if err != nil {
		return fmt.Errorf("reading audit counter: %w", err)
	}
	if !ok {
		maxStr = "0"
	}
	id, err := strconv.ParseInt(maxStr, 10, 64)
	if err != nil {
		return fmt.Errorf("audit counter holds %q: %w", maxStr, err)
	}

	data, err := json.Marshal([]any{op, d.clock.Now(), key, payload})
	if err != nil {
		return fmt.Errorf("encoding audit entry %d: %w", id, err)
	}
	if err := d.audit.Insert(strconv.FormatInt(id, 10), string(data)); err != nil {
		return fmt.Errorf("appending audit entry %d: %w", id, err)
	}
	if err := d.audit.Insert(auditMaxKey, strconv.FormatInt(id+1, 10)); err != nil {
		return fmt.Errorf("advancing audit counter: %w", err)
	}
	return nil
}

// GetAudit returns the audit entries with sequence ids in [from, to),
// ordered by id. A from (or to) of zero or below defaults to the stored
// minimum (or maximum) counter, so GetAudit(0, 0) pages the whole trail.
// Engines without auditing return an empty slice.
func (d *Database) GetAudit(from, to int64) ([]AuditEntry, error) {
	if d.audit == nil {
		return nil, nil
	}

	if from <= 0 {
		n, err := d.auditCounter(auditMinKey)
		if err != nil {
			return nil, err
		}
		from = n
	}
	if to <= 0 {
		n, err := d.auditCounter(auditMaxKey)
		if err != nil {
			return nil, err
		}
		to = n
	}

	var entries []AuditEntry
	for id := from; id < to; id++ {
		data, ok, err := d.audit.Get(strconv.FormatInt(id, 10))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		entry, err := parseAuditEntry(id, data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (d *Database) auditCounter(key string) (int64, error) {
	value, ok, err := d.audit.Get(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("audit counter %s holds %q: %w", key, value, err)
	}
	return n, nil
}

// parseAuditEntry decodes the stored [op, timestamp, key, payload] tuple.
func parseAuditEntry(id int64, data string) (AuditEntry, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(data), &parts); err != nil {
		return AuditEntry{}, fmt.Errorf("decoding audit entry %d: %w", id, err)
	}
	if len(parts) != 4 {
		return AuditEntry{}, fmt.Errorf("audit entry %d has %d fields, want 4", id, len(parts))
	}

	entry := AuditEntry{ID: id}
	if err := json.Unmarshal(parts[0], &entry.Op); err != nil {
		return AuditEntry{}, fmt.Errorf("audit entry %d op: %w", id, err)
	}
	if err := json.Unmarshal(parts[1], &entry.Timestamp); err != nil {
		return AuditEntry{}, fmt.Errorf("audit entry %d timestamp: %w", id, err)
	}
	if err := json.Unmarshal(parts[2], &entry.Key); err != nil {
		return AuditEntry{}, fmt.Errorf("audit entry %d key: %w", id, err)
	}
	if err := json.Unmarshal(parts[3], &entry.Payload); err != nil {
		// Deletes of unparsable records carry a null snapshot.
		entry.Payload = nil
	}
	return entry, nil
}
