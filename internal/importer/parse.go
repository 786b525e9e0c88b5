package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/models"
)

// ParseFile reads sessions from a .json or .csv export.
func ParseFile(path string) ([]models.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(f)
	case ".csv":
		return ParseCSV(f)
	}
	return nil, fmt.Errorf("unsupported export format %q", filepath.Ext(path))
}

// ParseJSON reads a JSON array of sessions in the API's wire format.
func ParseJSON(r io.Reader) ([]models.Session, error) {
	var sessions []models.Session
	if err := json.NewDecoder(r).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decoding sessions: %w", err)
	}
	return sessions, nil
}

// ParseCSV reads sessions from CSV with a header row. Columns are matched by
// name (date, minutes, rpe, intensity, template_id, stopped_early, id);
// minutes and rpe are required, the rest optional.
func ParseCSV(r io.Reader) ([]models.Session, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"minutes", "rpe"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var sessions []models.Session
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return sessions, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		s, err := sessionFromFields(field)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		sessions = append(sessions, s)
	}
}

func sessionFromFields(field func(string) string) (models.Session, error) {
	var s models.Session
	var err error

	if s.Minutes, err = strconv.Atoi(field("minutes")); err != nil {
		return s, fmt.Errorf("minutes: %w", err)
	}
	if s.RPE, err = strconv.ParseFloat(field("rpe"), 64); err != nil {
		return s, fmt.Errorf("rpe: %w", err)
	}
	s.Intensity = models.Intensity(field("intensity"))
	s.TemplateID = field("template_id")

	if v := field("date"); v != "" {
		if s.Date, err = parseDate(v); err != nil {
			return s, fmt.Errorf("date: %w", err)
		}
	}
	if v := field("stopped_early"); v != "" {
		if s.StoppedEarly, err = strconv.ParseBool(v); err != nil {
			return s, fmt.Errorf("stopped_early: %w", err)
		}
	}
	if v := field("id"); v != "" {
		if s.ID, err = uuid.Parse(v); err != nil {
			return s, fmt.Errorf("id: %w", err)
		}
	}
	return s, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
