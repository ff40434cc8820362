// Package models contains the GORM persistence models. They mirror the
// tables created by migrations/ and convert to and from the domain types, so
// the domain packages stay free of ORM tags.
package models
