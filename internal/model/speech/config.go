package speech

// Provider 语音合成服务提供方
type Provider string

const (
	ProviderVolcengine     Provider = "volcengine"      // 火山引擎 WebSocket 单向流式接口
	ProviderVolcengineHTTP Provider = "volcengine-http" // 火山引擎 HTTP v1 接口
	ProviderOpenAI         Provider = "openai"          // OpenAI /audio/speech
)

// SpeechConfig 语音服务配置
type SpeechConfig struct {
	Provider Provider `json:"provider"`

	// Volcengine 配置
	AppID       string `json:"appId"`            // 火山引擎 APP ID
	AccessToken string `json:"accessToken"`      // 火山引擎 Access Token
	APIKey      string `json:"apiKey,omitempty"` // 兼容旧配置的 API Key
	Cluster     string `json:"cluster"`          // HTTP 接口使用的集群
	BaseURL     string `json:"baseUrl"`          // 覆盖默认地址，测试时指向本地服务

	// OpenAI 配置
	OpenAIAPIKey  string `json:"-"`
	OpenAIBaseURL string `json:"openaiBaseUrl,omitempty"`
	TTSModel      string `json:"ttsModel,omitempty"`

	// TTS 配置
	TTSVoice    string  `json:"ttsVoice"`
	TTSSpeed    float32 `json:"ttsSpeed"`
	TTSVolume   float32 `json:"ttsVolume"`
	TTSLanguage string  `json:"ttsLanguage"`

	// 通用配置
	Timeout int `json:"timeout"` // seconds
}
