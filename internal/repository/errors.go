package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the services react to.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Unique constraint names from migrations/0001_init.up.sql.
const (
	ConstraintEnrollmentPrimaryKey = "enrollments_pkey"
	ConstraintEnrollmentCedula     = "enrollments_cedula_key"
	ConstraintEnrollmentEmail      = "enrollments_email_key"
	ConstraintCareerName           = "careers_name_key"
	ConstraintUserName             = "users_name_key"
	ConstraintUserEmail            = "users_email_key"
)

// UniqueViolation reports the violated constraint when err is a unique violation.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// ForeignKeyViolation reports the violated constraint when err is a foreign key violation.
func ForeignKeyViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgForeignKeyViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
