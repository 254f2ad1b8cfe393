package common

// AccessTokenHeaderName is the HTTP header used to carry the bearer access
// token on inbound requests.
const AccessTokenHeaderName = "Authorization"

// ContentKeySize is the number of random bytes in a freshly generated
// content key. The key travels as a hex string, so the string form is
// twice this length.
const ContentKeySize = 32

// SessionTokenSize is the number of random bytes in a session token.
const SessionTokenSize = 32
