package resume

import (
	"fmt"
	"net/url"
	"strings"
)

// LocatorToKey 从带签名定位符还原存储对象键。
// 取URL路径的最后一段并做百分号解码，对象键格式为 {ownerID}/{文件名}。
func LocatorToKey(ownerID, locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("解析定位符失败: %w", err)
	}

	path := strings.TrimSuffix(u.EscapedPath(), "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 || idx == len(path)-1 {
		return "", fmt.Errorf("定位符路径中没有文件名: %s", locator)
	}

	name, err := url.PathUnescape(path[idx+1:])
	if err != nil {
		return "", fmt.Errorf("解码定位符文件名失败: %w", err)
	}

	return ownerID + "/" + name, nil
}
