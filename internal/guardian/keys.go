package guardian

import "github.com/gezibash/arc-guardian/internal/kvstore"

// Storage layout:
//
//	guardianset/<account>          GuardianSet
//	activesession/<account>        SessionID
//	session/<id>                   Session
//	approver/<id>/<guardian>       presence marker
//	sessioncounter                 last issued SessionID
const (
	nsGuardianSet    = "guardianset"
	nsActiveSession  = "activesession"
	nsSession        = "session"
	nsApprover       = "approver"
	nsSessionCounter = "sessioncounter"
)

var sessionCounterKey = kvstore.NewKey(nsSessionCounter, "", "")

func guardianSetKey(a Account) kvstore.Key {
	return kvstore.NewKey(nsGuardianSet, string(a), "")
}

func activeSessionKey(a Account) kvstore.Key {
	return kvstore.NewKey(nsActiveSession, string(a), "")
}

func sessionKey(id SessionID) kvstore.Key {
	return kvstore.NewKey(nsSession, id.String(), "")
}

func approverKey(id SessionID, g Account) kvstore.Key {
	return kvstore.NewKey(nsApprover, id.String(), string(g))
}
