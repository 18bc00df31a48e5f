package types

// LoginIdentifierMode selects which identifiers login accepts.
type LoginIdentifierMode string

const (
	LoginUsernameOrEmail LoginIdentifierMode = "username_or_email"
	LoginEmailOnly       LoginIdentifierMode = "email"
)

// ClassIDScope selects whether item ids are unique globally or per owner.
type ClassIDScope string

const (
	ClassIDScopeGlobal ClassIDScope = "global"
	ClassIDScopeOwner  ClassIDScope = "owner"
)

// UpsertOwnership selects what a PUT on a class owned by someone else does.
type UpsertOwnership string

const (
	// UpsertForbid rejects the write unless the caller is admin.
	UpsertForbid UpsertOwnership = "forbid"
	// UpsertReassign overwrites the class and hands it to the caller.
	UpsertReassign UpsertOwnership = "reassign"
)

// Policy bundles the behaviour switches of the user and class services.
type Policy struct {
	LoginIdentifierMode LoginIdentifierMode
	DeleteRequiresAuth  bool
	ClassIDScope        ClassIDScope
	UpsertOwnership     UpsertOwnership
	// HideForeignClasses reports foreign classes as missing instead of forbidden.
	HideForeignClasses bool
}

// DefaultPolicy returns the default switches.
func DefaultPolicy() Policy {
	return Policy{
		LoginIdentifierMode: LoginUsernameOrEmail,
		DeleteRequiresAuth:  true,
		ClassIDScope:        ClassIDScopeGlobal,
		UpsertOwnership:     UpsertForbid,
	}
}
