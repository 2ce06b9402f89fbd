// Package auth holds the OpenAPI document served at /swagger/. It is
// generated from the handler annotations with `swag init`.
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/authflow"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/.well-known/jwks.json": {
            "get": {
                "produces": ["application/json"],
                "tags": ["well-known"],
                "summary": "Get JWKS",
                "responses": {
                    "200": {"description": "The JSON Web Key Set", "schema": {"$ref": "#/definitions/authsdk.JWKSResponse"}}
                }
            }
        },
        "/livez": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                    "503": {"description": "service not ready", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/v1/auth/token": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Exchange credentials",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "Access token and the next refresh token", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/password-reset": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["Auth"],
                "summary": "Request a password reset",
                "parameters": [
                    {"description": "Account email", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.PasswordResetRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "400": {"description": "Malformed email", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/actions": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Actions"],
                "summary": "Redeem an action token",
                "parameters": [
                    {"description": "Signed action token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.ActionRedeemRequest"}}
                ],
                "responses": {
                    "202": {"description": "Action accepted", "schema": {"$ref": "#/definitions/authsdk.ActionResponse"}},
                    "400": {"description": "Malformed request or weak password", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "401": {"description": "Invalid, expired or used token", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/actions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Actions"],
                "summary": "Poll an action request",
                "parameters": [
                    {"type": "string", "description": "Action request id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Current status", "schema": {"$ref": "#/definitions/authsdk.ActionResponse"}},
                    "404": {"description": "Unknown or expired id", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/tokens/{id}/resend": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Actions"],
                "summary": "Resend an action token",
                "parameters": [
                    {"type": "string", "description": "Token id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "403": {"description": "Admin role required", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "404": {"description": "Unknown, used or expired token", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/users": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Get users",
                "parameters": [
                    {"type": "string", "description": "Comma separated user ids", "name": "ids", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "Users", "schema": {"type": "array", "items": {"$ref": "#/definitions/authsdk.UserResponse"}}},
                    "400": {"description": "Missing or too many ids", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "403": {"description": "Admin role required", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Register",
                "parameters": [
                    {"description": "Email and password", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created user", "schema": {"$ref": "#/definitions/authsdk.UserResponse"}},
                    "400": {"description": "Invalid email or weak password", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "409": {"description": "Email already in use", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/users/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Get a user",
                "parameters": [
                    {"type": "string", "description": "User id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "User", "schema": {"$ref": "#/definitions/authsdk.UserResponse"}},
                    "401": {"description": "Missing or invalid access token", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "403": {"description": "Not your account", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "404": {"description": "Unknown user", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/users/{id}/email": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "tags": ["Users"],
                "summary": "Change email",
                "parameters": [
                    {"type": "string", "description": "User id", "name": "id", "in": "path", "required": true},
                    {"description": "New email", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.EmailChangeRequest"}}
                ],
                "responses": {
                    "202": {"description": "Verification sent"},
                    "400": {"description": "Invalid email", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "403": {"description": "Not your account", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "409": {"description": "Email already in use", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        }
    },
    "definitions": {
        "authsdk.APIError": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "authsdk.ActionRedeemRequest": {
            "type": "object",
            "properties": {"password": {"type": "string"}, "token": {"type": "string"}}
        },
        "authsdk.ActionResponse": {
            "type": "object",
            "properties": {
                "action": {"type": "string"},
                "createdAt": {"type": "string"},
                "id": {"type": "string"},
                "status": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "authsdk.EmailChangeRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}}
        },
        "authsdk.HealthChecks": {
            "type": "object",
            "properties": {"cache": {"type": "string"}, "database": {"type": "string"}, "signer": {"type": "string"}}
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {"$ref": "#/definitions/authsdk.HealthChecks"},
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "authsdk.JWKSResponse": {
            "type": "object",
            "properties": {"keys": {"type": "array", "items": {"$ref": "#/definitions/jwtx.JWK"}}}
        },
        "authsdk.PasswordResetRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}}
        },
        "authsdk.RegisterRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "authsdk.TokenRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}, "refreshToken": {"type": "string"}}
        },
        "authsdk.TokenResponse": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "expiresAt": {"type": "string"},
                "refreshToken": {"type": "string"},
                "tokenType": {"type": "string"}
            }
        },
        "authsdk.UserResponse": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "email": {"type": "string"},
                "emailVerifiedAt": {"type": "string"},
                "id": {"type": "string"},
                "pendingEmail": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "updatedAt": {"type": "string"}
            }
        },
        "jwtx.JWK": {
            "type": "object",
            "properties": {
                "alg": {"type": "string"},
                "crv": {"type": "string"},
                "kid": {"type": "string"},
                "kty": {"type": "string"},
                "use": {"type": "string"},
                "x": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT access token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Authflow Authentication Service API",
	Description:      "Credential exchange with single-use refresh tokens, and asynchronous account actions\n(email verification, password reset) redeemed from signed one-time links.\n\nAccess and action tokens are signed with EdDSA (Ed25519) and can be verified using the JWKS endpoint.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
