package extractor

import (
	"context"
	"regexp"
	"strings"

	"cv-sidecar/internal/nlp"
	"cv-sidecar/internal/types"
)

var (
	emailPattern = regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)

	// 英国手机/座机（带或不带国家码）、国际格式、通用分组数字，按此顺序尝试
	phonePattern = regexp.MustCompile(`(?:` +
		`(?:\+44|0044)\s*7\d{3}\s*\d{3}\s*\d{3}|` +
		`07\d{3}\s*\d{3}\s*\d{3}|` +
		`(?:\+44|0044)\s*[12]\d{2,3}\s*\d{3}\s*\d{3,4}|` +
		`0[12]\d{2,3}\s*\d{3}\s*\d{3,4}|` +
		`\+\d{1,3}[-.\s]?\d{3,4}[-.\s]?\d{3,4}[-.\s]?\d{2,4}|` +
		`\(?\d{3,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}` +
		`)`)

	linkedInPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com/in/[\w-]+/?`)
	gitHubPattern   = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?github\.com/[\w-]+/?`)
	urlPattern      = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?[a-zA-Z0-9][\w.-]*\.[a-zA-Z]{2,}(?:/[\w./-]*)?`)

	spaceRun = regexp.MustCompile(`\s+`)
)

// companyIndicators 人名中出现这些词时视为公司名
var companyIndicators = map[string]bool{
	"ltd": true, "limited": true, "inc": true, "incorporated": true, "corp": true, "corporation": true,
	"llc": true, "llp": true, "plc": true, "gmbh": true, "ag": true, "sa": true, "srl": true, "bv": true,
	"company": true, "co": true, "group": true, "holdings": true, "partners": true, "consulting": true,
}

// nonPortfolioHosts 不作为个人网站的域名
var nonPortfolioHosts = []string{"linkedin.com", "github.com", "google.com", "facebook.com", "twitter.com", "instagram.com"}

// bareHostTLDs 没有协议、www 和路径的裸域名只接受这些顶级域，避免把 "Node.js" 当成网址
var bareHostTLDs = map[string]bool{
	"com": true, "net": true, "org": true, "io": true, "dev": true, "me": true, "co": true,
	"uk": true, "app": true, "ai": true, "info": true, "tech": true, "site": true, "page": true,
}

// 各字段的可靠度
const (
	weightEmail     = 1.0
	weightPhone     = 0.9
	weightProfile   = 0.9
	weightPortfolio = 0.7
	weightName      = 0.8
	weightAddress   = 0.6
)

// Contact 提取联系方式并给出置信度。
// 邮箱、电话和链接用正则；姓名和地址取窗口内第一个 PERSON / GPE 实体。
func (e *Extractor) Contact(ctx context.Context, text string) (types.ContactInfo, float64) {
	var contact types.ContactInfo
	var factors []float64

	emails := emailPattern.FindAllString(text, -1)
	if len(emails) > 0 {
		contact.Email = emails[0]
		factors = append(factors, weightEmail)
	}

	if phone := phonePattern.FindString(text); phone != "" {
		contact.Phone = spaceRun.ReplaceAllString(strings.TrimSpace(phone), " ")
		factors = append(factors, weightPhone)
	}

	if url := linkedInPattern.FindString(text); url != "" {
		contact.LinkedIn = withScheme(url)
		factors = append(factors, weightProfile)
	}

	if url := gitHubPattern.FindString(text); url != "" {
		contact.GitHub = withScheme(url)
		factors = append(factors, weightProfile)
	}

	if url := findPortfolio(text, emails); url != "" {
		contact.Portfolio = url
		factors = append(factors, weightPortfolio)
	}

	entities := e.entities(ctx, HeadChars(text, e.contextWindow))
	for _, person := range nlp.Filter(entities, nlp.LabelPerson) {
		if !isLikelyCompany(person) {
			contact.Name = strings.TrimSpace(person)
			factors = append(factors, weightName)
			break
		}
	}
	if places := nlp.Filter(entities, nlp.LabelGPE); len(places) > 0 {
		contact.Address = places[0]
		factors = append(factors, weightAddress)
	}

	return contact, contactConfidence(factors)
}

// contactConfidence 三项及以上为 1.0；两项取平均；一项按可靠度取 0.7 或 0.5
func contactConfidence(factors []float64) float64 {
	switch {
	case len(factors) == 0:
		return 0
	case len(factors) >= 3:
		return 1.0
	case len(factors) == 2:
		return round2((factors[0] + factors[1]) / 2)
	case factors[0] >= 0.8:
		return 0.7
	default:
		return 0.5
	}
}

// isLikelyCompany 名字中含公司标识词（整词，允许带 . 或 , 结尾）
func isLikelyCompany(name string) bool {
	for _, word := range strings.Fields(strings.ToLower(name)) {
		if companyIndicators[strings.TrimRight(word, ".,")] {
			return true
		}
	}
	return false
}

// findPortfolio 第一个不是社交网站、不是邮箱域名的网址
func findPortfolio(text string, emails []string) string {
	emailDomains := make(map[string]bool, len(emails))
	for _, email := range emails {
		if at := strings.LastIndexByte(email, '@'); at >= 0 {
			emailDomains[strings.ToLower(email[at+1:])] = true
		}
	}

	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		url := text[loc[0]:loc[1]]
		lower := strings.ToLower(url)

		if containsAny(lower, nonPortfolioHosts) || strings.Contains(url, "@") {
			continue
		}
		// 邮箱 @ 后面的域名部分
		if loc[0] > 0 && text[loc[0]-1] == '@' {
			continue
		}
		host := hostOf(lower)
		if emailDomains[host] || emailDomains[strings.TrimPrefix(host, "www.")] {
			continue
		}
		if !hasScheme(lower) && !strings.HasPrefix(lower, "www.") && !strings.Contains(lower, "/") {
			if !bareHostTLDs[host[strings.LastIndexByte(host, '.')+1:]] {
				continue
			}
		}
		return withScheme(url)
	}
	return ""
}

func hostOf(lowerURL string) string {
	host := lowerURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return host
}

func hasScheme(lowerURL string) bool {
	return strings.HasPrefix(lowerURL, "http://") || strings.HasPrefix(lowerURL, "https://")
}

func withScheme(url string) string {
	if strings.HasPrefix(strings.ToLower(url), "http") {
		return url
	}
	return "https://" + url
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
