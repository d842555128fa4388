// Package docs registers the generated OpenAPI description with swag so the
// Swagger UI route can serve it. Regenerate with:
//
//	swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/classifications/webhook": {
            "post": {
                "description": "Routes each classified message to the matching item table (todo or followup).",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhook"],
                "summary": "Ingest a batch of classified messages",
                "operationId": "dispatchWebhook",
                "responses": {}
            }
        },
        "/todo": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Todos"],
                "summary": "List todos (filtered, paginated)",
                "operationId": "listTodos",
                "responses": {}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Todos"],
                "summary": "Create a todo",
                "operationId": "createTodo",
                "responses": {}
            }
        },
        "/todo/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Todos"],
                "summary": "Per-status todo counts for a user",
                "operationId": "todoStats",
                "responses": {}
            }
        },
        "/todo/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Todos"],
                "summary": "Get a todo by id",
                "operationId": "getTodo",
                "responses": {}
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Todos"],
                "summary": "Update a todo (partial)",
                "operationId": "updateTodo",
                "responses": {}
            },
            "delete": {
                "tags": ["Todos"],
                "summary": "Delete a todo",
                "operationId": "deleteTodo",
                "responses": {}
            }
        },
        "/followup": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Followups"],
                "summary": "List follow-ups (filtered, paginated)",
                "operationId": "listFollowups",
                "responses": {}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Followups"],
                "summary": "Create a follow-up",
                "operationId": "createFollowup",
                "responses": {}
            }
        },
        "/followup/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Followups"],
                "summary": "Per-status follow-up counts for a user",
                "operationId": "followupStats",
                "responses": {}
            }
        },
        "/followup/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Followups"],
                "summary": "Get a follow-up by id",
                "operationId": "getFollowup",
                "responses": {}
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Followups"],
                "summary": "Update a follow-up (partial)",
                "operationId": "updateFollowup",
                "responses": {}
            },
            "delete": {
                "tags": ["Followups"],
                "summary": "Delete a follow-up",
                "operationId": "deleteFollowup",
                "responses": {}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Actions Backend API",
	Description:      "Persistence and retrieval API for todos and follow-ups extracted from classified messages.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
