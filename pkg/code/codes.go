package code

// 成功
var (
	Success           = NewSuss(1, lang{en: "Success", zh_cn: "成功"})
	SuccessConnected  = NewSuss(2, lang{en: "Notes connected", zh_cn: "已连接笔记"})
	SuccessDeleted    = NewSuss(3, lang{en: "Note deleted", zh_cn: "笔记已删除"})
	SuccessDisconnect = NewSuss(4, lang{en: "Connections removed", zh_cn: "连线已移除"})
	SuccessLinked     = NewSuss(5, lang{en: "Object linked to note", zh_cn: "已关联到笔记"})
)

// 提示
var (
	WarnSelfConnection   = NewWarn(301, lang{en: "Cannot connect a note to itself", zh_cn: "不能将笔记连接到自身"})
	WarnNoteLocked       = NewWarn(302, lang{en: "This note is locked and cannot be moved", zh_cn: "笔记已锁定，无法移动"})
	WarnNotBoardMode     = NewWarn(303, lang{en: "Board editing mode is not active", zh_cn: "未处于看板编辑模式"})
	WarnAudioPlaying     = NewWarn(304, lang{en: "This recording is already playing", zh_cn: "该录音正在播放"})
	WarnNoConnections    = NewWarn(305, lang{en: "This note has no connections", zh_cn: "该笔记没有连线"})
	WarnActionCancelled  = NewWarn(306, lang{en: "Action cancelled", zh_cn: "操作已取消"})
	WarnNotManagedObject = NewWarn(307, lang{en: "The selected document cannot be pinned to the board", zh_cn: "所选文档无法固定到看板"})
)

// 错误
var (
	ErrorServerInternal     = NewError(500, lang{en: "Internal server error", zh_cn: "服务器内部错误"})
	ErrorInvalidParams      = NewError(501, lang{en: "Invalid parameters", zh_cn: "参数错误"})
	ErrorNoteNotFound       = NewError(502, lang{en: "Note not found", zh_cn: "笔记不存在"})
	ErrorSceneNotFound      = NewError(503, lang{en: "Scene not found", zh_cn: "场景不存在"})
	ErrorChannelUnavailable = NewError(504, lang{en: "No connection to the game master, the change was not sent", zh_cn: "与主持人的连接不可用，修改未发送"})
	ErrorPermissionDenied   = NewError(505, lang{en: "You do not have permission to do that", zh_cn: "没有权限执行此操作"})
	ErrorStoreWrite         = NewError(506, lang{en: "Failed to save the note", zh_cn: "保存笔记失败"})
	ErrorWriteQueueFull     = NewError(507, lang{en: "Too many pending changes, try again", zh_cn: "待处理修改过多，请重试"})
	ErrorAssetLoad          = NewError(508, lang{en: "Failed to load image, a placeholder is shown", zh_cn: "图片加载失败，已显示占位图"})
	ErrorRelayRejected      = NewError(509, lang{en: "The relayed request was rejected", zh_cn: "转发请求被拒绝"})
	ErrorRenderFailed       = NewError(510, lang{en: "Failed to render the board", zh_cn: "渲染看板失败"})
	ErrorInvalidAuthToken   = NewError(511, lang{en: "Invalid authorization token", zh_cn: "无效的授权令牌"})
	ErrorNotAuthorized      = NewError(512, lang{en: "Authorize the connection first", zh_cn: "请先完成连接授权"})
	ErrorNotFoundAPI        = NewError(513, lang{en: "API not found", zh_cn: "接口不存在"})
	ErrorTooManyRequests    = NewError(514, lang{en: "Too many requests, slow down", zh_cn: "请求过于频繁"})
)
