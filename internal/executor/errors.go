package executor

import "fmt"

// ExhaustedError 按重试策略耗尽全部尝试后的终止错误
// 包装最后一次底层失败,调用方可用 errors.Is/As 检查根因
type ExhaustedError struct {
	Attempts int    // 实际尝试次数
	Model    string // 最后一次尝试使用的模型
	Err      error  // 最后一次底层错误
}

// Error 实现error接口
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("execution exhausted after %d attempts (model=%s): %v", e.Attempts, e.Model, e.Err)
}

// Unwrap 返回最后一次底层错误
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
