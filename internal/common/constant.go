package common

// AccessTokenHeaderName is the gRPC metadata key carrying the access token
// on authenticated calls.
const AccessTokenHeaderName = "access_token"

// UnauthorizedMessage is the only message clients see for rejected
// credentials and rejected tokens, so the two cannot be told apart.
const UnauthorizedMessage = "unauthorized"
