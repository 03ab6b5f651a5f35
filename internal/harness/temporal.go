package harness

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/storycheck/storycheck/internal/record"
)

// LocalTimezone returns the name of the local timezone, used to stamp
// fixtures at record time. Falls back to the numeric UTC offset when no
// zone name is available; NormalizeTemporal understands both forms.
func LocalTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	if data, err := os.ReadFile("/etc/timezone"); err == nil {
		if tz := strings.TrimSpace(string(data)); tz != "" {
			return tz
		}
	}
	return time.Now().Format("-07:00")
}

// NormalizeTemporal reinterprets every timestamp-bearing field of a
// fixture dataset from its recorded timezone into the local execution
// timezone, preserving absolute instants, and strips the timezone
// annotation. The actual dataset never carries the annotation and is
// always evaluated as local time.
func NormalizeTemporal(dataset record.List) error {
	for i, v := range dataset {
		story, ok := v.(record.Object)
		if !ok {
			return fmt.Errorf("dataset[%d]: expected story object, got %T", i, v)
		}

		tzVal, stamped := story[record.KeyTimezone].(record.String)
		delete(story, record.KeyTimezone)
		if !stamped {
			continue
		}

		loc, err := resolveZone(string(tzVal))
		if err != nil {
			return fmt.Errorf("dataset[%d]: %w", i, err)
		}
		if err := shiftPublishDate(story, loc); err != nil {
			return fmt.Errorf("dataset[%d]: %w", i, err)
		}

		if sens, ok := story[record.KeySentences].(record.List); ok {
			for j, sv := range sens {
				sen, ok := sv.(record.Object)
				if !ok {
					continue
				}
				if err := shiftPublishDate(sen, loc); err != nil {
					return fmt.Errorf("dataset[%d] sentence %d: %w", i, j, err)
				}
			}
		}
	}
	return nil
}

// shiftPublishDate rewrites obj's publish_date from loc into local time.
func shiftPublishDate(obj record.Object, loc *time.Location) error {
	raw, ok := obj[record.KeyPublishDate].(record.String)
	if !ok {
		return nil
	}
	t, err := dateparse.ParseIn(string(raw), loc)
	if err != nil {
		return fmt.Errorf("parse publish_date %q: %w", string(raw), err)
	}
	obj[record.KeyPublishDate] = record.String(t.In(time.Local).Format(record.SQLDateLayout))
	return nil
}

// resolveZone loads a timezone by IANA name or fixed numeric offset.
func resolveZone(name string) (*time.Location, error) {
	if strings.HasPrefix(name, "+") || strings.HasPrefix(name, "-") {
		t, err := time.Parse("-07:00", name)
		if err != nil {
			return nil, fmt.Errorf("parse timezone offset %q: %w", name, err)
		}
		return t.Location(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
