package rbac

import "github.com/tutorhub/tutorhub/internal/shared"

// HeaderTempRole is the client-echoed preview header. It is honoured only
// for ADMIN accounts; everyone else resolves to their stored base role no
// matter what the header says.
const HeaderTempRole = "X-Temp-Role"

// ResolveEffectiveRole computes the role code to authorize against. Pure
// function of its inputs; preview state lives entirely on the client, so
// the header must accompany every request for a preview to stay in effect.
func ResolveEffectiveRole(actor *shared.Actor, previewHeader string) RoleCode {
	if actor == nil {
		return ""
	}
	base := RoleCode(actor.BaseRole)
	if base != RoleAdmin {
		return base
	}
	preview := RoleCode(previewHeader)
	if previewHeader != "" && KnownRoleCode(preview) {
		return preview
	}
	return RoleAdmin
}

// PreviewRole returns the previewed role for the actor, or "" when no
// valid preview is in effect. Invalid and non-admin headers are silently
// treated as absent.
func PreviewRole(actor *shared.Actor, previewHeader string) RoleCode {
	if actor == nil || RoleCode(actor.BaseRole) != RoleAdmin {
		return ""
	}
	preview := RoleCode(previewHeader)
	if previewHeader != "" && KnownRoleCode(preview) {
		return preview
	}
	return ""
}
