// SPDX-License-Identifier: MIT

package config

import (
	"reflect"
	"sort"
)

// hotReloadable lists field paths that take effect without a restart.
// Everything else is read once at startup.
var hotReloadable = map[string]bool{
	"LogLevel":            true,
	"Relay.Timeout":       true,
	"Relay.GraceInterval": true,
	"Relay.Heartbeat":     true,
	"Cache.AgentTTL":      true,
}

// ChangeSummary describes the result of comparing two AppConfigs.
type ChangeSummary struct {
	ChangedFields   []string // List of field paths that changed
	RestartRequired bool     // True if any changed field is not hot-reloadable
}

// Diff compares two configurations and returns a summary of changes.
func Diff(old, next AppConfig) ChangeSummary {
	summary := ChangeSummary{}
	summary.compareStruct("", reflect.ValueOf(old), reflect.ValueOf(next))
	sort.Strings(summary.ChangedFields)
	return summary
}

func (s *ChangeSummary) compareStruct(prefix string, oldVal, nextVal reflect.Value) {
	t := oldVal.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		fieldPath := f.Name
		if prefix != "" {
			fieldPath = prefix + "." + f.Name
		}

		ov := oldVal.Field(i)
		nv := nextVal.Field(i)

		if ov.Kind() == reflect.Struct {
			s.compareStruct(fieldPath, ov, nv)
			continue
		}
		if !reflect.DeepEqual(ov.Interface(), nv.Interface()) {
			s.ChangedFields = append(s.ChangedFields, fieldPath)
			if !hotReloadable[fieldPath] {
				s.RestartRequired = true
			}
		}
	}
}
