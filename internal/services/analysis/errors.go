package analysis

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCompanyName    = errors.New("종목명을 입력해주세요.")
	ErrCompanyNameTooLong  = errors.New("종목명이 너무 깁니다.")
	ErrAnalysisInProgress  = errors.New("이미 분석이 진행 중입니다. 잠시 후 다시 시도해주세요.")
	ErrInvalidAnalysisJSON = errors.New("분석 데이터가 올바른 JSON 객체가 아닙니다.")
)

// UpstreamError wraps a failed or unusable model response for one company
type UpstreamError struct {
	Company string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("'%s' 분석 중 오류 발생: %s 회사명을 확인하거나 잠시 후 다시 시도해주세요.", e.Company, e.Err.Error())
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
