package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Billing API",
        "description": "Billing backend for students, charges, payments and assessments",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication and account management"},
        {"name": "Students", "description": "Student roster and grade promotion"},
        {"name": "Charges", "description": "Charge catalog and balance summaries"},
        {"name": "Payments", "description": "Payment recording, reversal and receipts"},
        {"name": "Assessments", "description": "Assessment batch snapshots"},
        {"name": "Dashboard", "description": "Aggregate statistics"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "responses": {
                    "200": {"description": "Token pair"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token for a new token pair",
                "responses": {
                    "200": {"description": "Token pair"},
                    "401": {"description": "Invalid or expired refresh token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke the current refresh token",
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Create a new user account (admin only)",
                "responses": {
                    "201": {"description": "Created user"},
                    "409": {"description": "Username or email already taken"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Change the current user's password",
                "responses": {
                    "204": {"description": "Password updated"},
                    "401": {"description": "Current password mismatch"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students with optional filters",
                "responses": {
                    "200": {"description": "Paginated students"}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create a student",
                "responses": {
                    "201": {"description": "Created student"},
                    "409": {"description": "Student number already in use"}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Fetch a single student",
                "responses": {
                    "200": {"description": "Student"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update a student",
                "responses": {
                    "200": {"description": "Updated student"}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete a student (admin only)",
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/students/batch-upgrade": {
            "post": {
                "tags": ["Students"],
                "summary": "Promote active students of a grade to another grade (admin only)",
                "responses": {
                    "200": {"description": "Number of students promoted"}
                }
            }
        },
        "/students/{id}/check-back-payments": {
            "post": {
                "tags": ["Students"],
                "summary": "Preview outstanding charges before a promotion",
                "responses": {
                    "200": {"description": "Unpaid charges and total"}
                }
            }
        },
        "/students/{id}/upgrade-with-back-payments": {
            "post": {
                "tags": ["Students"],
                "summary": "Promote a student carrying outstanding charges forward",
                "responses": {
                    "200": {"description": "Promotion result"},
                    "400": {"description": "Target grade not ahead of current grade"}
                }
            }
        },
        "/charges": {
            "get": {
                "tags": ["Charges"],
                "summary": "List charges with optional filters",
                "responses": {
                    "200": {"description": "Paginated charges"}
                }
            },
            "post": {
                "tags": ["Charges"],
                "summary": "Create a charge",
                "responses": {
                    "201": {"description": "Created charge"}
                }
            }
        },
        "/charges/{id}": {
            "get": {
                "tags": ["Charges"],
                "summary": "Fetch a single charge",
                "responses": {
                    "200": {"description": "Charge"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Charges"],
                "summary": "Update a charge",
                "responses": {
                    "200": {"description": "Updated charge"}
                }
            },
            "delete": {
                "tags": ["Charges"],
                "summary": "Delete a charge with no payments against it (admin only)",
                "responses": {
                    "204": {"description": "Deleted"},
                    "400": {"description": "Charge has linked payments"}
                }
            }
        },
        "/charges/grade/{grade}": {
            "get": {
                "tags": ["Charges"],
                "summary": "List active charges applicable to a grade",
                "responses": {
                    "200": {"description": "Charges"}
                }
            }
        },
        "/charges/students/summary": {
            "get": {
                "tags": ["Charges"],
                "summary": "Balance summary per active student",
                "responses": {
                    "200": {"description": "Summaries"}
                }
            }
        },
        "/charges/students/{studentId}/breakdown": {
            "get": {
                "tags": ["Charges"],
                "summary": "Full charge, payment and back payment breakdown for a student",
                "responses": {
                    "200": {"description": "Breakdown"},
                    "404": {"description": "Student not found"}
                }
            }
        },
        "/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List payments with optional filters",
                "responses": {
                    "200": {"description": "Paginated payments"}
                }
            },
            "post": {
                "tags": ["Payments"],
                "summary": "Record a payment with one or more items",
                "responses": {
                    "201": {"description": "Created payment with invoice number"},
                    "400": {"description": "Unknown charge or invalid items"}
                }
            }
        },
        "/payments/{id}": {
            "get": {
                "tags": ["Payments"],
                "summary": "Fetch a payment with its items",
                "responses": {
                    "200": {"description": "Payment"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Payments"],
                "summary": "Delete a payment, rolling back its ledger effects (admin only)",
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/payments/{id}/revert": {
            "post": {
                "tags": ["Payments"],
                "summary": "Revert a payment, rolling back its ledger effects",
                "responses": {
                    "200": {"description": "Reverted payment"},
                    "400": {"description": "Payment already reverted"}
                }
            }
        },
        "/payments/{id}/receipt": {
            "get": {
                "tags": ["Payments"],
                "summary": "Download a PDF receipt for a payment",
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF receipt"}
                }
            }
        },
        "/payments/student/{studentId}": {
            "get": {
                "tags": ["Payments"],
                "summary": "Payment history and totals for a student",
                "responses": {
                    "200": {"description": "History"}
                }
            }
        },
        "/assessments/batches": {
            "get": {
                "tags": ["Assessments"],
                "summary": "List assessment batches",
                "responses": {
                    "200": {"description": "Batches"}
                }
            }
        },
        "/assessments/batch": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Create an assessment batch snapshotting current balances",
                "responses": {
                    "201": {"description": "Created batch"},
                    "400": {"description": "No students selected"}
                }
            }
        },
        "/assessments/batch/{batchId}": {
            "get": {
                "tags": ["Assessments"],
                "summary": "Fetch a batch with its assessments",
                "responses": {
                    "200": {"description": "Batch detail"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Assessments"],
                "summary": "Delete a batch and its assessments",
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/assessments/batch/{batchId}/export": {
            "get": {
                "tags": ["Assessments"],
                "summary": "Export a batch as CSV or PDF",
                "responses": {
                    "200": {"description": "Exported file"}
                }
            }
        },
        "/assessments/{assessmentId}": {
            "put": {
                "tags": ["Assessments"],
                "summary": "Update a single assessment row",
                "responses": {
                    "200": {"description": "Updated assessment"}
                }
            }
        },
        "/assessments/clear-all": {
            "delete": {
                "tags": ["Assessments"],
                "summary": "Remove all assessment batches (admin only)",
                "responses": {
                    "200": {"description": "Number of batches removed"}
                }
            }
        },
        "/dashboard/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Aggregate billing statistics",
                "responses": {
                    "200": {"description": "Stats"}
                }
            }
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
