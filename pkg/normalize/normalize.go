package normalize

// Row holds the six canonical fields of a client. Each field is either a
// trimmed non-empty string or "".
type Row struct {
	Name         string
	Company      string
	Email        string
	Phone        string
	Source       string
	NotesSummary string
}

// IsEmpty reports whether no field could be resolved.
func (r Row) IsEmpty() bool {
	return r == Row{}
}

// Candidate chains per output field, highest priority first.
var (
	NameChain = Chain{
		{"name"},
		{"full_name"},
		{"company_name"},
		{"company"},
	}

	CompanyChain = Chain{
		{"company"},
		{"company_name"},
	}

	EmailChain = Chain{
		{"email"},
		{"primary_contact", "email"},
		{"contact", "email"},
	}

	PhoneChain = Chain{
		{"phone"},
		{"primary_contact", "phone"},
		{"contact", "phone"},
	}

	SourceChain = Chain{
		{"source"},
		{"lead_source"},
	}

	NotesChain = Chain{
		{"notes"},
		{"note"},
	}
)

// Normalize derives a Row from a raw record. It never fails: missing or
// wrongly typed values resolve to "".
func Normalize(r Record) Row {
	return Row{
		Name:         NameChain.Resolve(r),
		Company:      CompanyChain.Resolve(r),
		Email:        EmailChain.Resolve(r),
		Phone:        PhoneChain.Resolve(r),
		Source:       SourceChain.Resolve(r),
		NotesSummary: NotesChain.Resolve(r),
	}
}
