package session

// CookieName is the browser cookie carrying the session identifier.
const CookieName = "waply_session"

// LocalsKey is the fiber locals key under which middleware stores the
// session identifier for handlers.
const LocalsKey = "session_id"
