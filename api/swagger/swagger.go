package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Matricula API",
        "description": "School enrollment requests, document completeness and section capacity",
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
        {"name": "Periods", "description": "Academic periods and the current period"},
        {"name": "GradeLevels", "description": "Ordered grade catalog"},
        {"name": "Sections", "description": "Grade sections and seat capacity"},
        {"name": "Requirements", "description": "Document requirement catalog"},
        {"name": "Enrollments", "description": "Enrollment requests and their lifecycle"},
        {"name": "Documents", "description": "Submitted documents and signed downloads"},
        {"name": "Reports", "description": "Rosters and enrollment statistics"}
    ],
    "paths": {
        "/periods": {
            "get": {"tags": ["Periods"], "summary": "List periods", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {"tags": ["Periods"], "summary": "Create period", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}}}
        },
        "/periods/current": {
            "get": {"tags": ["Periods"], "summary": "Current period", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "No current period"}}}
        },
        "/periods/{id}/activate": {
            "post": {"tags": ["Periods"], "summary": "Mark period as current", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/periods/{id}/enrollment-counts": {
            "get": {"tags": ["Reports"], "summary": "Enrollment totals per status", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/grade-levels/{id}": {
            "put": {"tags": ["GradeLevels"], "summary": "Update grade level", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Display order already used"}}}
        },
        "/sections/{id}": {
            "put": {"tags": ["Sections"], "summary": "Update section label, capacity or shift", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Label already used or capacity below approved enrollments"}}},
            "delete": {"tags": ["Sections"], "summary": "Deactivate a section without open enrollments", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "No Content"}, "409": {"description": "Section still has open enrollments"}}}
        },
        "/sections/available": {
            "get": {"tags": ["Sections"], "summary": "Sections with free seats in the current period", "security": [{"BearerAuth": []}], "parameters": [{"name": "periodId", "in": "query", "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/sections/{id}/capacity": {
            "get": {"tags": ["Sections"], "summary": "Seat usage of a section", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/sections/{id}/roster": {
            "get": {"tags": ["Reports"], "summary": "Export approved roster", "produces": ["text/csv", "application/pdf"], "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}], "responses": {"200": {"description": "File"}}}
        },
        "/requirements": {
            "get": {"tags": ["Requirements"], "summary": "List active requirements", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/enrollments": {
            "get": {"tags": ["Enrollments"], "summary": "List enrollments", "security": [{"BearerAuth": []}], "parameters": [
                {"name": "periodId", "in": "query", "type": "string"},
                {"name": "sectionId", "in": "query", "type": "string"},
                {"name": "status", "in": "query", "type": "string"},
                {"name": "q", "in": "query", "type": "string"},
                {"name": "page", "in": "query", "type": "integer"},
                {"name": "limit", "in": "query", "type": "integer"}
            ], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {"tags": ["Enrollments"], "summary": "Create enrollment request", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Already enrolled"}}}
        },
        "/enrollments/{id}/status": {
            "get": {"tags": ["Enrollments"], "summary": "Compact status view", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/enrollments/{id}/history": {
            "get": {"tags": ["Enrollments"], "summary": "Transition history", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]}], "responses": {"200": {"description": "OK"}}}
        },
        "/enrollments/{id}/approve": {
            "post": {"tags": ["Enrollments"], "summary": "Approve enrollment", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Concurrent approval or student already approved in period"}}}
        },
        "/enrollments/{id}/reject": {
            "post": {"tags": ["Enrollments"], "summary": "Reject enrollment", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "400": {"description": "Reason required"}}}
        },
        "/enrollments/{id}/documents": {
            "get": {"tags": ["Documents"], "summary": "Document completeness matrix", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/enrollments/{id}/documents/{requirementId}": {
            "post": {"tags": ["Documents"], "summary": "Upload document", "consumes": ["multipart/form-data"], "security": [{"BearerAuth": []}], "parameters": [
                {"name": "id", "in": "path", "required": true, "type": "string"},
                {"name": "requirementId", "in": "path", "required": true, "type": "string"},
                {"name": "file", "in": "formData", "required": true, "type": "file"}
            ], "responses": {"201": {"description": "Created"}, "400": {"description": "Disallowed extension or file too large"}, "403": {"description": "Verified documents can only be replaced by staff"}}}
        },
        "/documents": {
            "get": {"tags": ["Documents"], "summary": "Staff review queue across enrollments", "security": [{"BearerAuth": []}], "parameters": [
                {"name": "status", "in": "query", "type": "string", "enum": ["PENDING", "VERIFIED", "REJECTED", ""]},
                {"name": "page", "in": "query", "type": "integer"},
                {"name": "limit", "in": "query", "type": "integer"}
            ], "responses": {"200": {"description": "OK, meta.counts holds the totals per status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "403": {"description": "Staff only"}}}
        },
        "/documents/{id}/verify": {
            "post": {"tags": ["Documents"], "summary": "Verify a pending document", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Document changed since it was read"}}}
        },
        "/documents/{id}/download-url": {
            "get": {"tags": ["Documents"], "summary": "Issue signed download link", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/documents/{id}/download": {
            "get": {"tags": ["Documents"], "summary": "Download with signed token", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "token", "in": "query", "required": true, "type": "string"}], "responses": {"200": {"description": "File"}, "401": {"description": "Invalid or expired token"}}}
        }
    },
    "definitions": {
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
