package cmd

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// readSecret 从终端读取，不回显
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("读取输入失败: %w", err)
	}
	return string(b), nil
}

// readNewPassword 输入两次确认
func readNewPassword() (string, error) {
	pw, err := readSecret("请输入 Keystore 密码: ")
	if err != nil {
		return "", err
	}
	if len(pw) < 8 {
		return "", errors.New("密码长度至少 8 位")
	}
	confirm, err := readSecret("请再次输入密码: ")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", errors.New("两次输入的密码不一致")
	}
	return pw, nil
}
