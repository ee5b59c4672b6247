package api

// Messages written for malformed identifiers and absent records
const (
	MsgInvalidProductID = "Please send valid product id!"
	MsgInvalidOrderID   = "Please send valid order id!"
	MsgOrderNotFound    = "Order Not Found"
	MsgReviewNotFound   = "Review Not Found"
	MsgEmptyUpdate      = "Nothing to update"
	MsgStatusRequired   = "Order status is required"
	MsgReviewerRequired = "Reviewer email is required"
)

// OrderStatusRequest is the body of PATCH /updateOrderStatus
type OrderStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// UserRequest is the body of PUT /users
type UserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// AdminStatusResponse is the body of GET /users/{email}
type AdminStatusResponse struct {
	Admin bool `json:"admin"`
}
