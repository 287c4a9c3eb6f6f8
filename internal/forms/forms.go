// Package forms describes form input fields and extracts the restrictions
// (select/radio-group admissible value sets) fed to the solver, grounded on
// FormFieldRestrictedValues::getRestrictions.
package forms

// FieldType is a form field's input kind.
type FieldType int

const (
	TypeText FieldType = iota
	TypeBoolean
	TypeFixedInput // select element
	TypeNoInput
)

// Field is a form input descriptor: collaborator-owned data referenced by
// the core when building restrictions and injecting values.
type Field struct {
	ID           string // DOM id, if present
	Name         string // DOM name attribute, if present
	Type         FieldType
	IsRadio      bool
	RadioGroup   string // DOM "name" shared by all radios in the group
	Checked      bool   // this specific radio's checked state, if IsRadio
	SelectValues []string
}

// VariableName is the stable solver/form-injection variable name for a
// field: its DOM id if set, else its DOM name, else the sentinel below.
func (f Field) VariableName() string {
	if f.ID != "" {
		return f.ID
	}
	if f.Name != "" {
		return f.Name
	}
	return NoNameSentinel
}

// NoNameSentinel is returned by VariableName when a field has neither an id
// nor a name; every field should have an auto-generated id by the time it
// reaches this package, so seeing this value indicates an upstream defect.
const NoNameSentinel = "NO-NAME"

// SelectRestriction records that variable must take one of Values.
type SelectRestriction struct {
	Variable string
	Values   []string
}

// RadioRestriction records that at most one of Variables may hold, and
// whether the group must have some member set (AlwaysSet).
type RadioRestriction struct {
	GroupName string
	Variables []string
	AlwaysSet bool
}

// Restrictions is the full set of form restrictions extracted from a page's
// fields, ready to be translated into solver constraints.
type Restrictions struct {
	Selects []SelectRestriction
	Radios  []RadioRestriction
}

// GetRestrictions scans fields and groups them into select and radio-group
// restrictions, per FormFieldRestrictedValues::getRestrictions. Fields of
// any other type are ignored — they carry no admissibility constraint.
func GetRestrictions(fields []Field) Restrictions {
	var selects []SelectRestriction
	radioGroups := map[string]*RadioRestriction{}
	var radioOrder []string

	for _, field := range fields {
		switch {
		case field.Type == TypeFixedInput:
			selects = append(selects, SelectRestriction{
				Variable: field.VariableName(),
				Values:   append([]string(nil), field.SelectValues...),
			})

		case field.IsRadio:
			group, ok := radioGroups[field.RadioGroup]
			if !ok {
				group = &RadioRestriction{GroupName: field.RadioGroup}
				radioGroups[field.RadioGroup] = group
				radioOrder = append(radioOrder, field.RadioGroup)
			}
			group.Variables = append(group.Variables, field.VariableName())
			group.AlwaysSet = group.AlwaysSet || field.Checked
		}
	}

	radios := make([]RadioRestriction, 0, len(radioOrder))
	for _, name := range radioOrder {
		radios = append(radios, *radioGroups[name])
	}

	return Restrictions{Selects: selects, Radios: radios}
}
