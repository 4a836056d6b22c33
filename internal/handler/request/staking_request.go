package request

// StakeRequest 质押请求参数
type StakeRequest struct {
	Owner  string `json:"owner" binding:"required,len=42,startswith=0x"`
	Amount string `json:"amount" binding:"required"` // 显示单位，字符串避免精度损失
}

// UnstakeRequest 取回请求参数
type UnstakeRequest struct {
	Owner     string `json:"owner" binding:"required,len=42,startswith=0x"`
	Amount    string `json:"amount" binding:"required"`
	Token     string `json:"token" binding:"omitempty,oneof=b3tr vot3"`          // 取回路径，默认 b3tr
	Recipient string `json:"recipient" binding:"omitempty,len=42,startswith=0x"` // 收款地址，默认 owner
}
