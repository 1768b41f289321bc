package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Teaching Load API",
        "description": "Teaching load allocation and audit ledger",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login and token issuance"},
        {"name": "Allocations", "description": "Teaching load allocation and mutation"},
        {"name": "Declarations", "description": "Declared lesson counts per class subject"},
        {"name": "Workload", "description": "Per-teacher workload summaries and exports"},
        {"name": "Audit", "description": "Append-only audit ledger"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/allocations": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Allocate teaching loads",
                "description": "Applies a batch of proposed assignments atomically. Requests for the same class subject are evaluated in order against its remaining capacity.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AllocateBody"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload or duplicate triple in batch"},
                    "422": {"description": "No remaining capacity"}
                }
            }
        },
        "/allocations/{id}": {
            "put": {
                "tags": ["Allocations"],
                "summary": "Edit one teaching assignment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EditBody"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "204": {"description": "Assignment removed (zero load)"},
                    "404": {"description": "Assignment not found"}
                }
            },
            "delete": {
                "tags": ["Allocations"],
                "summary": "Delete one teaching assignment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Assignment not found"}
                }
            }
        },
        "/allocations/batch-edit": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Edit multiple assignments atomically",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchEditBody"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent modification, batch aborted"}
                }
            }
        },
        "/allocations/batch-delete": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Delete multiple assignments atomically",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchDeleteBody"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Assignment not found, batch aborted"}
                }
            }
        },
        "/allocations/capacity": {
            "get": {
                "tags": ["Allocations"],
                "summary": "Remaining capacity for a class subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "class_id", "in": "query", "required": true, "type": "string"},
                    {"name": "subject_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-subjects/lesson-count": {
            "put": {
                "tags": ["Declarations"],
                "summary": "Update the declared lesson count of a class subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LessonCountBody"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Declared count below already allocated lessons"}
                }
            }
        },
        "/teachers/{id}/homeroom-reduction": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Grant a homeroom reduction to a teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Reduction already granted"}
                }
            },
            "delete": {
                "tags": ["Allocations"],
                "summary": "Revoke a teacher's homeroom reduction",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "No reduction to revoke"}
                }
            }
        },
        "/teachers/{id}/workload": {
            "get": {
                "tags": ["Workload"],
                "summary": "Teacher workload summary",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/workload/export": {
            "get": {
                "tags": ["Workload"],
                "summary": "Export teacher workload",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Exported file"}
                }
            }
        },
        "/audit/{entityType}/{entityId}": {
            "get": {
                "tags": ["Audit"],
                "summary": "List audit entries for one entity",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "entityType", "in": "path", "required": true, "type": "string", "enum": ["TEACHING_ASSIGNMENT", "TEACHER", "CLASS_SUBJECT"]},
                    {"name": "entityId", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "AllocateRequest": {
            "type": "object",
            "properties": {
                "teacher_id": {"type": "string"},
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "lessons_per_week": {"type": "integer"},
                "number_of_weeks": {"type": "integer"}
            },
            "required": ["teacher_id", "class_id", "subject_id"]
        },
        "AllocateBody": {
            "type": "object",
            "properties": {
                "assignments": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/AllocateRequest"}
                }
            },
            "required": ["assignments"]
        },
        "EditBody": {
            "type": "object",
            "properties": {
                "lessons_per_week": {"type": "integer"},
                "number_of_weeks": {"type": "integer"}
            }
        },
        "BatchEditBody": {
            "type": "object",
            "properties": {
                "edits": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/EditRequest"}
                }
            }
        },
        "EditRequest": {
            "type": "object",
            "properties": {
                "assignment_id": {"type": "string"},
                "lessons_per_week": {"type": "integer"},
                "number_of_weeks": {"type": "integer"}
            },
            "required": ["assignment_id"]
        },
        "BatchDeleteBody": {
            "type": "object",
            "properties": {
                "assignment_ids": {
                    "type": "array",
                    "items": {"type": "string"}
                }
            }
        },
        "LessonCountBody": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "lesson_count": {"type": "integer"}
            },
            "required": ["class_id", "subject_id"]
        },
        "TeachingAssignmentDetail": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "lessons_per_week": {"type": "integer"},
                "number_of_weeks": {"type": "integer"},
                "completed_lessons": {"type": "integer"},
                "teacher_name": {"type": "string"},
                "class_name": {"type": "string"},
                "class_kind": {"type": "string"},
                "subject_name": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "RemainingCapacity": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "lesson_count": {"type": "integer"},
                "allocated": {"type": "integer"},
                "remaining": {"type": "integer"}
            }
        },
        "AuditLog": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "actor_id": {"type": "string"},
                "action": {"type": "string"},
                "entity_type": {"type": "string"},
                "entity_id": {"type": "string"},
                "data_before": {"type": "object"},
                "data_after": {"type": "object"},
                "ip_address": {"type": "string"},
                "user_agent": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
