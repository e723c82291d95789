package live

// Roles known to DefaultAuthorizer.
const (
	RoleAdmin   = "admin"
	RoleReferee = "referee"
	RoleScorer  = "scorer"
)

// Authorizer is the external capability check.
type Authorizer interface {
	CanRecordEvent(role string) bool
}

// MatchDeleter is an optional Authorizer extension for the privileged
// delete. Authorizers without it allow only RoleAdmin to delete.
type MatchDeleter interface {
	CanDeleteMatch(role string) bool
}

// RoleAuthorizer grants capabilities by role name.
type RoleAuthorizer struct {
	Recorders []string
	Admins    []string
}

// DefaultAuthorizer lets referees, scorers and admins record events and
// only admins delete matches.
var DefaultAuthorizer = RoleAuthorizer{
	Recorders: []string{RoleReferee, RoleScorer, RoleAdmin},
	Admins:    []string{RoleAdmin},
}

// CanRecordEvent reports whether role may record match events.
func (a RoleAuthorizer) CanRecordEvent(role string) bool {
	return contains(a.Recorders, role)
}

// CanDeleteMatch reports whether role may delete a match.
func (a RoleAuthorizer) CanDeleteMatch(role string) bool {
	return contains(a.Admins, role)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// CanDelete reports whether a may let role delete matches.
func CanDelete(a Authorizer, role string) bool {
	if d, ok := a.(MatchDeleter); ok {
		return d.CanDeleteMatch(role)
	}
	return role == RoleAdmin
}

func (s *Service) canDelete() bool {
	return CanDelete(s.auth, s.op.Role)
}
