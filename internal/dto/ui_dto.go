package dto

// SearchQuery GET /ui/search
type SearchQuery struct {
	Q    string `form:"q"`
	Type string `form:"type" binding:"omitempty,search_type"`
	Page int    `form:"page" binding:"omitempty,min=1"`
}

// PageQuery GET /ui/favorites, GET /ui/messages
type PageQuery struct {
	Page int `form:"page" binding:"omitempty,min=1"`
}

// ToggleFavoriteRequest POST /ui/favorites/toggle
type ToggleFavoriteRequest struct {
	Type       string `form:"type" binding:"required,record_type"`
	ID         string `form:"id" binding:"required"`
	Action     string `form:"action" binding:"required,oneof=add remove"`
	List       string `form:"list" binding:"required,oneof=search favorites messages"`
	Generation int64  `form:"gen"`
}

// ContextQuery GET /ui/context/:message_id
type ContextQuery struct {
	List       string `form:"list" binding:"omitempty,oneof=search messages"`
	Generation int64  `form:"gen"`
}

// ChartQuery POST /ui/call-records/chart
type ChartQuery struct {
	CallNum int `form:"call_num" binding:"omitempty,min=1,max=10000"`
}

// DownloadQuery GET /ui/call-records/download
type DownloadQuery struct {
	Type string `form:"type" binding:"required,oneof=excel chart"`
}
