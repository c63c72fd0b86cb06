package types

// StatCategory is an outcome counted by a reconciliation pass
type StatCategory string

const (
	StatNew       StatCategory = "new"
	StatModified  StatCategory = "modified"
	StatUnchanged StatCategory = "unchanged"
	StatDeleted   StatCategory = "deleted"
	StatInTrash   StatCategory = "in_trash"
	StatErrors    StatCategory = "errors"
)

// AllStatCategories returns every countable outcome
func AllStatCategories() []StatCategory {
	return []StatCategory{
		StatNew,
		StatModified,
		StatUnchanged,
		StatDeleted,
		StatInTrash,
		StatErrors,
	}
}

// IsValid checks if the category is one of the fixed outcomes
func (c StatCategory) IsValid() bool {
	switch c {
	case StatNew, StatModified, StatUnchanged, StatDeleted, StatInTrash, StatErrors:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category
func (c StatCategory) String() string {
	return string(c)
}
