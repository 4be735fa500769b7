package xretry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置格式
type Format string

const (
	// FormatYAML YAML 格式
	FormatYAML Format = "yaml"
	// FormatJSON JSON 格式
	FormatJSON Format = "json"
)

// 配置加载错误
var (
	// ErrEmptyPath 配置文件路径为空
	ErrEmptyPath = errors.New("xretry: config path cannot be empty")

	// ErrUnsupportedFormat 不支持的配置格式
	ErrUnsupportedFormat = errors.New("xretry: unsupported config format")

	// ErrLoadFailed 配置读取失败
	ErrLoadFailed = errors.New("xretry: failed to load config")

	// ErrParseFailed 配置解析失败
	ErrParseFailed = errors.New("xretry: failed to parse config")

	// ErrUnmarshalFailed 配置反序列化失败
	ErrUnmarshalFailed = errors.New("xretry: failed to unmarshal config")

	// ErrUnknownCondition 未知的判定函数名
	ErrUnknownCondition = errors.New("xretry: unknown retry condition")
)

// policySpec 是策略在配置文件中的序列化形态。
// 延迟字段支持 "500ms"、"2s" 这类时长字符串。
type policySpec struct {
	MaxAttempts   int           `koanf:"max_attempts"`
	BaseDelay     time.Duration `koanf:"base_delay"`
	MaxDelay      time.Duration `koanf:"max_delay"`
	BackoffFactor float64       `koanf:"backoff_factor"`
	Condition     string        `koanf:"condition"`
}

// LoadPolicies 从文件加载命名策略集合。
// 根据文件扩展名自动检测格式（.yaml/.yml 或 .json）。
//
// 配置示例（YAML）：
//
//	checkpoint:
//	  max_attempts: 5
//	  base_delay: 200ms
//	  max_delay: 5s
//	  backoff_factor: 2.0
//	login:
//	  max_attempts: 2
//	  base_delay: 1s
//	  condition: auth
//
// condition 可选值：default（或留空）、auth。
// 未填写的字段在执行时补齐为默认值。
func LoadPolicies(path string) (map[string]Policy, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	return LoadPoliciesFromBytes(data, format)
}

// LoadPoliciesFromBytes 从字节数据加载命名策略集合。
// 需要显式指定格式，适用于 K8s ConfigMap 等场景。
// 空数据返回空集合，与读取空文件的行为一致。
func LoadPoliciesFromBytes(data []byte, format Format) (map[string]Policy, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := loadData(k, data, format); err != nil {
			return nil, err
		}
	}

	specs := make(map[string]policySpec)
	if err := k.UnmarshalWithConf("", &specs, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}

	policies := make(map[string]Policy, len(specs))
	for name, spec := range specs {
		p, err := spec.toPolicy()
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", name, err)
		}
		policies[name] = p
	}
	return policies, nil
}

// toPolicy 将配置形态转换为 Policy。
func (s policySpec) toPolicy() (Policy, error) {
	p := Policy{
		MaxAttempts:   s.MaxAttempts,
		BaseDelay:     s.BaseDelay,
		MaxDelay:      s.MaxDelay,
		BackoffFactor: s.BackoffFactor,
	}
	switch strings.ToLower(s.Condition) {
	case "", "default":
		// 留空使用 DefaultRetryCondition
	case "auth":
		p.RetryIf = AuthRetryCondition
	default:
		return Policy{}, fmt.Errorf("%w: %s", ErrUnknownCondition, s.Condition)
	}
	return p, nil
}

// detectFormat 根据文件扩展名检测配置格式。
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

// isValidFormat 检查格式是否有效。
func isValidFormat(format Format) bool {
	switch format {
	case FormatYAML, FormatJSON:
		return true
	default:
		return false
	}
}

// loadData 加载数据到 koanf 实例。
func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return ErrUnsupportedFormat
	}

	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
