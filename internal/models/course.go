package models

import (
	"time"
)

// ClassRoom is a school class, e.g. "8A".
type ClassRoom struct {
	ID              string `json:"id" mapstructure:"id"`
	Name            string `json:"name" mapstructure:"name"`
	HomeroomTeacher string `json:"homeroomTeacher,omitempty" mapstructure:"homeroomTeacher"`
}

type ContentType string

const (
	ContentFile  ContentType = "file"
	ContentLink  ContentType = "link"
	ContentEmbed ContentType = "embed"
)

// Material is a piece of learning content published to one or more classes.
type Material struct {
	ID          string      `json:"id" mapstructure:"id"`
	Title       string      `json:"title" mapstructure:"title"`
	Description string      `json:"description" mapstructure:"description"`
	Type        ContentType `json:"type" mapstructure:"type"`
	Content     string      `json:"content" mapstructure:"content"`
	// TargetClassIDs holds ClassRoom names, not IDs.
	TargetClassIDs []string  `json:"targetClassIds" mapstructure:"targetClassIds"`
	CreatedAt      time.Time `json:"createdAt" mapstructure:"createdAt"`
}

// Task is a Material with a due date that students may submit work for.
type Task struct {
	ID                  string      `json:"id" mapstructure:"id"`
	Title               string      `json:"title" mapstructure:"title"`
	Description         string      `json:"description" mapstructure:"description"`
	Type                ContentType `json:"type" mapstructure:"type"`
	Content             string      `json:"content" mapstructure:"content"`
	TargetClassIDs      []string    `json:"targetClassIds" mapstructure:"targetClassIds"`
	DueDate             string      `json:"dueDate" mapstructure:"dueDate"`
	IsSubmissionEnabled bool        `json:"isSubmissionEnabled" mapstructure:"isSubmissionEnabled"`
	CreatedAt           time.Time   `json:"createdAt" mapstructure:"createdAt"`
}

// DueDateLayout is the calendar date format of Task.DueDate.
const DueDateLayout = "2006-01-02"

// ClassRefKind tells how a ClassRef identifies its class.
type ClassRefKind int

const (
	ClassRefByName ClassRefKind = iota
	ClassRefByID
)

// ClassRef is a reference to a ClassRoom. Stored documents reference classes by name; ClassRef makes
// the kind of reference explicit so that it can be resolved through a lookup table.
type ClassRef struct {
	Kind  ClassRefKind
	Value string
}

func ClassName(name string) ClassRef {
	return ClassRef{Kind: ClassRefByName, Value: name}
}

func ClassID(id string) ClassRef {
	return ClassRef{Kind: ClassRefByID, Value: id}
}

// SaveClassRequest is the parameter struct for the CreateClass and UpdateClass functions.
type SaveClassRequest struct {
	// Will be set from the URL on updates
	ClassID         string `json:",omitempty"`
	Name            string `json:"name" validate:"required,classname"`
	HomeroomTeacher string `json:"homeroomTeacher" validate:"required"`
}

// SaveMaterialRequest is the parameter struct for the CreateMaterial and UpdateMaterial functions.
type SaveMaterialRequest struct {
	// Will be set from the URL on updates
	MaterialID     string      `json:",omitempty"`
	Title          string      `json:"title" validate:"required"`
	Description    string      `json:"description"`
	Type           ContentType `json:"type" validate:"omitempty,oneof=file link embed"`
	Content        string      `json:"content" validate:"required,httpurl"`
	TargetClassIDs []string    `json:"targetClassIds" validate:"required,min=1,dive,required"`
}

// SaveTaskRequest is the parameter struct for the CreateTask and UpdateTask functions.
type SaveTaskRequest struct {
	// Will be set from the URL on updates
	TaskID         string      `json:",omitempty"`
	Title          string      `json:"title" validate:"required"`
	Description    string      `json:"description"`
	Type           ContentType `json:"type" validate:"omitempty,oneof=file link embed"`
	Content        string      `json:"content" validate:"required,httpurl"`
	TargetClassIDs []string    `json:"targetClassIds" validate:"required,min=1,dive,required"`
	DueDate        string      `json:"dueDate" validate:"required,duedate"`
	// Nil means enabled.
	IsSubmissionEnabled *bool `json:"isSubmissionEnabled,omitempty"`
}
