package lib

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be unmarshalled from JSON and YAML, either as
// a number of nanoseconds or as a string such as "50ms".
type Duration struct {
	time.Duration
}

// DurationFrom gets around the "struct literal uses unkeyed fields" warning if you try
// to declare a Duration literal such as lib.Duration{time.Second}.
func DurationFrom(t time.Duration) Duration {
	return Duration{t}
}

func (duration *Duration) UnmarshalJSON(b []byte) error {
	var unmarshalledJson interface{}
	if err := json.Unmarshal(b, &unmarshalledJson); err != nil {
		return err
	}
	return duration.set(unmarshalledJson)
}

func (duration Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(duration.String())
}

func (duration *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return duration.set(raw)
}

func (duration Duration) MarshalYAML() (interface{}, error) {
	return duration.String(), nil
}

func (duration *Duration) set(raw interface{}) (err error) {
	switch value := raw.(type) {
	case float64:
		duration.Duration = time.Duration(value)
	case int:
		duration.Duration = time.Duration(value)
	case string:
		duration.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid duration: %#v", raw)
	}
	return nil
}
