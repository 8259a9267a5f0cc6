package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Grading API",
        "description": "Exam grading, cohort ranking and progress trends",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Rankings", "description": "Cohort rankings, exports and cache warm-up"},
        {"name": "Reports", "description": "Student report cards and progress trends"}
    ],
    "paths": {
        "/exams/{examId}/rankings": {
            "get": {
                "tags": ["Rankings"],
                "summary": "Rank an exam cohort",
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "streamId", "in": "query", "type": "string"},
                    {"name": "rankBy", "in": "query", "type": "string", "enum": ["mean_points", "total_points", "total_marks"]},
                    {"name": "refresh", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Exam or grading system not configured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{examId}/rankings/export": {
            "get": {
                "tags": ["Rankings"],
                "summary": "Export an exam cohort ranking",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "streamId", "in": "query", "type": "string"},
                    {"name": "rankBy", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{examId}/rankings/precompute": {
            "post": {
                "tags": ["Rankings"],
                "summary": "Warm the ranking cache in the background",
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/PrecomputeRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Queue full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{examId}/rankings/precompute/{jobId}": {
            "get": {
                "tags": ["Rankings"],
                "summary": "Get a precompute job",
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "string"},
                    {"name": "jobId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{examId}/rankings/cache": {
            "delete": {
                "tags": ["Rankings"],
                "summary": "Drop cached rankings for an exam",
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{examId}/students/{studentId}/report": {
            "get": {
                "tags": ["Reports"],
                "summary": "Get a student's report for an exam",
                "parameters": [
                    {"name": "examId", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "streamId", "in": "query", "type": "string"},
                    {"name": "rankBy", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Exam or grading system not configured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/trend": {
            "get": {
                "tags": ["Reports"],
                "summary": "Get a student's progress trend",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CohortScope": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "stream_id": {"type": "string"}
            }
        },
        "PrecomputeRequest": {
            "type": "object",
            "properties": {
                "rank_by": {"type": "string"},
                "cohorts": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/CohortScope"}
                }
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
