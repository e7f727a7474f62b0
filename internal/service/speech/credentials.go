package speech

import (
	"fmt"
	"strings"

	speechmodel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
)

// resolveCredentials 返回规范化后的 AppID 与 AccessToken，缺失时给出明确错误。
func resolveCredentials(cfg *speechmodel.SpeechConfig) (appID, token string, err error) {
	if cfg == nil {
		return "", "", fmt.Errorf("火山引擎语音配置未初始化")
	}

	appID = strings.TrimSpace(cfg.AppID)
	token = strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		token = strings.TrimSpace(cfg.APIKey)
	}

	if appID == "" || token == "" {
		return "", "", fmt.Errorf("火山引擎语音配置缺少 AppID 或 AccessToken")
	}

	return appID, token, nil
}

// volcengineVoiceAliases 将产品内使用的声音别名映射为火山引擎音色。
var volcengineVoiceAliases = map[string]string{
	"tutor-default":                         "zh_female_vv_uranus_bigtts",
	"tutor-female":                          "zh_female_vv_uranus_bigtts",
	"tutor-male":                            "zh_male_M392_conversation_wvae_bigtts",
	"zh_male_m392_conversation":             "zh_male_M392_conversation_wvae_bigtts",
	"zh_male_m392_conversation_wvae_bigtts": "zh_male_M392_conversation_wvae_bigtts",
}

// resolveVolcengineSpeakers 返回按优先级排列、去重后的候选音色。
func resolveVolcengineSpeakers(requested, fallback string) []string {
	var candidates []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "default") {
			return
		}
		if mapped, ok := volcengineVoiceAliases[strings.ToLower(s)]; ok {
			s = mapped
		}
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		candidates = append(candidates, s)
	}

	add(requested)
	add(fallback)
	if len(candidates) == 0 {
		add("tutor-default")
	}

	return candidates
}
