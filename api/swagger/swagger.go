package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "EduSchedule API",
        "description": "Timetable generation engine: constraint solving, candidate ranking, manual moves and exports",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Generation", "description": "Solver runs and job lifecycle"},
        {"name": "Candidates", "description": "Ranked timetable candidates, analysis and explanations"},
        {"name": "Moves", "description": "Manual lesson relocation with constraint validation"},
        {"name": "Exports", "description": "CSV/PDF rendering with signed downloads"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A backing store is unreachable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/status": {
            "get": {
                "summary": "Aggregated counter snapshot",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/timetables/{id}/generate": {
            "post": {
                "tags": ["Generation"],
                "summary": "Start timetable generation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/GenerateRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A generation job is already active for this timetable"},
                    "503": {"description": "Generation queue is full"}
                }
            }
        },
        "/api/v1/generation-jobs/{id}": {
            "get": {
                "tags": ["Generation"],
                "summary": "Generation job status and outcome",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job"}
                }
            },
            "delete": {
                "tags": ["Generation"],
                "summary": "Cancel a queued or running job",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Cancellation requested"},
                    "409": {"description": "Job already finished"}
                }
            }
        },
        "/api/v1/timetables/{id}/candidates": {
            "get": {
                "tags": ["Candidates"],
                "summary": "List ranked candidates",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/candidates/{id}": {
            "get": {
                "tags": ["Candidates"],
                "summary": "Candidate detail with the full lesson grid",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown candidate"}
                }
            }
        },
        "/api/v1/candidates/{id}/analysis": {
            "get": {
                "tags": ["Candidates"],
                "summary": "Quality analysis (workloads, room usage, distribution)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/candidates/{id}/explanation": {
            "get": {
                "tags": ["Candidates"],
                "summary": "Why the candidate ranks where it does",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/candidates/{id}/moves/validate": {
            "post": {
                "tags": ["Moves"],
                "summary": "Dry-run a lesson move",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveRequest"}}
                ],
                "responses": {
                    "200": {"description": "Decision", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/candidates/{id}/moves": {
            "post": {
                "tags": ["Moves"],
                "summary": "Validate and apply a lesson move",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveRequest"}}
                ],
                "responses": {
                    "200": {"description": "Move applied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Move rejected; decision carries the violated constraint"}
                }
            }
        },
        "/api/v1/candidates/{id}/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a CSV or PDF export of the candidate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Export queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status with the download link once finished",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid, expired or mismatched token"}
                }
            }
        }
    },
    "definitions": {
        "GenerateRequest": {
            "type": "object",
            "properties": {
                "maxSolutions": {"type": "integer", "minimum": 1, "maximum": 10},
                "timeBudgetSeconds": {"type": "integer", "minimum": 5, "maximum": 1800}
            }
        },
        "MoveRequest": {
            "type": "object",
            "properties": {
                "assignmentId": {"type": "string"},
                "day": {"type": "integer"},
                "period": {"type": "integer"}
            },
            "required": ["assignmentId"]
        },
        "MoveDecision": {
            "type": "object",
            "properties": {
                "accepted": {"type": "boolean"},
                "applied": {"type": "boolean"},
                "constraint": {"type": "string"},
                "message": {"type": "string"},
                "conflict": {"type": "object"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["format"]
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
