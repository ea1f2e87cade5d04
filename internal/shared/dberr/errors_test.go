package dberr

import (
	"errors"
	"strings"
	"testing"
)

func TestMapping_错误信息包含类型名(t *testing.T) {
	err := Mapping("Order", "no identifier field")
	if !errors.Is(err, ErrMapping) {
		t.Fatalf("期望 errors.Is(err, ErrMapping), err=%v", err)
	}
	if !strings.Contains(err.Error(), "Order") {
		t.Fatalf("期望错误信息包含类型名, got=%q", err.Error())
	}
	if err.Data()["type"] != "Order" {
		t.Fatalf("期望 data.type=Order, got=%v", err.Data())
	}
	if len(err.Stack()) == 0 {
		t.Fatalf("期望映射错误（系统类）捕获栈")
	}
}

func TestInvalidOperation_带id(t *testing.T) {
	err := InvalidOperation("Order", "abc", "cannot replace entity")
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("期望 errors.Is(err, ErrInvalidOperation), err=%v", err)
	}
	if errors.Is(err, ErrMapping) {
		t.Fatalf("期望不同错误码不互相匹配")
	}
	if !strings.Contains(err.Error(), "id=abc") {
		t.Fatalf("期望错误信息包含实体 id, got=%q", err.Error())
	}
	if err.Stack() != nil {
		t.Fatalf("期望非法操作（业务类）不捕获栈")
	}
}
