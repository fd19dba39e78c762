package models

// Option is one selectable value of a catalog option list
type Option struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// OptionValues returns the bare values of options
func OptionValues(options []Option) []string {
	values := make([]string, len(options))
	for i, o := range options {
		values[i] = o.Value
	}
	return values
}
