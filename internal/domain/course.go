package domain

import (
	"fmt"
	"time"
)

// CourseType is the delivery format of a course.
type CourseType string

const (
	CourseTypeCourse  CourseType = "COURSE"
	CourseTypeOneTime CourseType = "ONE_TIME"
)

// ParseCourseType converts a canonical name into a CourseType.
func ParseCourseType(s string) (CourseType, error) {
	switch CourseType(s) {
	case CourseTypeCourse, CourseTypeOneTime:
		return CourseType(s), nil
	default:
		return "", fmt.Errorf("unknown course type %q", s)
	}
}

// String returns the canonical name used in the index.
func (t CourseType) String() string {
	return string(t)
}

// Course is a catalog entry as stored in the search index.
type Course struct {
	ID              string     `json:"id" yaml:"id"`
	Title           string     `json:"title" yaml:"title"`
	Description     string     `json:"description" yaml:"description"`
	Category        string     `json:"category" yaml:"category"`
	Type            CourseType `json:"type" yaml:"type"`
	MinAge          int        `json:"minAge" yaml:"minAge"`
	MaxAge          int        `json:"maxAge" yaml:"maxAge"`
	Price           float64    `json:"price" yaml:"price"`
	NextSessionDate time.Time  `json:"nextSessionDate" yaml:"nextSessionDate"`
	TitleSuggest    string     `json:"titleSuggest,omitempty" yaml:"titleSuggest,omitempty"`
}

// Index field names shared by the query builder and the engines.
const (
	FieldID              = "id"
	FieldTitle           = "title"
	FieldDescription     = "description"
	FieldCategory        = "category"
	FieldType            = "type"
	FieldMinAge          = "minAge"
	FieldMaxAge          = "maxAge"
	FieldPrice           = "price"
	FieldNextSessionDate = "nextSessionDate"
	FieldTitleSuggest    = "titleSuggest"
)
