package result

import (
	"encoding/json"
	"strings"
)

var stepStatusByOrdinal = []StepStatus{StatusSuccess, StatusFailed, StatusNotRun}

var runResultByOrdinal = []RunResult{RunRun, RunSkipped, RunNotSynced, RunNotRun}

// UnmarshalJSON accepts the status name in any casing, its ordinal, or null.
// Anything unrecognised decodes to absent rather than failing the document.
func (s *StepStatus) UnmarshalJSON(data []byte) error {
	name, ordinal, ok := decodeEnum(data)
	*s = ""
	if !ok {
		return nil
	}
	if name == "" {
		if ordinal >= 0 && ordinal < len(stepStatusByOrdinal) {
			*s = stepStatusByOrdinal[ordinal]
		}
		return nil
	}
	for _, v := range stepStatusByOrdinal {
		if foldName(name) == foldName(string(v)) {
			*s = v
			return nil
		}
	}
	return nil
}

// UnmarshalJSON accepts the run result name in any casing, its ordinal, or null.
func (r *RunResult) UnmarshalJSON(data []byte) error {
	name, ordinal, ok := decodeEnum(data)
	*r = ""
	if !ok {
		return nil
	}
	if name == "" {
		if ordinal >= 0 && ordinal < len(runResultByOrdinal) {
			*r = runResultByOrdinal[ordinal]
		}
		return nil
	}
	for _, v := range runResultByOrdinal {
		if foldName(name) == foldName(string(v)) {
			*r = v
			return nil
		}
	}
	return nil
}

// decodeEnum returns either a non-empty name or an ordinal. ok is false for
// null and for values that are neither strings nor integers.
func decodeEnum(data []byte) (name string, ordinal int, ok bool) {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		str = strings.TrimSpace(str)
		return str, -1, str != ""
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		return "", n, true
	}
	return "", -1, false
}

// foldName drops separators and case so "not_run", "Not Run" and "NotRun" match.
func foldName(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
