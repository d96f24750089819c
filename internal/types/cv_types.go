package types

// DocumentType 文档类型
type DocumentType string

const (
	// DocumentPDF PDF 文档
	DocumentPDF DocumentType = "pdf"
	// DocumentDOCX Word 2007+ 文档
	DocumentDOCX DocumentType = "docx"
)

// SectionName 简历章节名称
type SectionName string

const (
	SectionExperience     SectionName = "experience"
	SectionEducation      SectionName = "education"
	SectionSkills         SectionName = "skills"
	SectionCertifications SectionName = "certifications"
	SectionLanguages      SectionName = "languages"
	SectionPublications   SectionName = "publications"
	SectionVolunteer      SectionName = "volunteer"
	SectionProjects       SectionName = "projects"
	SectionSummary        SectionName = "summary"
	SectionInterests      SectionName = "interests"
	SectionReferences     SectionName = "references"
	SectionAwards         SectionName = "awards"
)

// ExtractionMethod 字段的提取来源
type ExtractionMethod string

const (
	MethodRegex  ExtractionMethod = "regex"
	MethodLLM    ExtractionMethod = "llm"
	MethodHybrid ExtractionMethod = "hybrid"
)

// BBox 页面内坐标 (x0, y0, x1, y1)，原点在左上角
type BBox [4]float64

// TextBlock 带位置信息的文本块
type TextBlock struct {
	Text string  `json:"text"`
	BBox BBox    `json:"bbox"`
	Font string  `json:"font,omitempty"`
	Size float64 `json:"size,omitempty"`
	Page int     `json:"page"` // 从1开始
}

// TableData 表格数据，所有行列数相同，空单元格为空字符串
type TableData struct {
	Rows [][]string `json:"rows"`
	Page int        `json:"page"`
}

// ParseResult 单次文档解析的结果。
// Error 非空时 RawText 为空且 PageCount 为 0。
type ParseResult struct {
	RawText      string       `json:"raw_text"`
	Blocks       []TextBlock  `json:"blocks"`
	Tables       []TableData  `json:"tables"`
	Warnings     []string     `json:"warnings"`
	ParseTimeMS  int64        `json:"parse_time_ms"`
	DocumentType DocumentType `json:"document_type"`
	PageCount    int          `json:"page_count"`
	Error        string       `json:"error,omitempty"`
}

// Failed 判断解析结果是否携带可恢复的文档错误
func (r *ParseResult) Failed() bool {
	return r != nil && r.Error != ""
}

// Section 章节在原始文本中的半开区间 [Start, End)，单位是字符（rune）而不是字节
type Section struct {
	Name  SectionName `json:"name"`
	Start int         `json:"start"`
	End   int         `json:"end"`
}

// ContactInfo 联系方式，空字符串表示未找到
type ContactInfo struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	GitHub    string `json:"github,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
}

// IsEmpty 是否一个字段都没有
func (c ContactInfo) IsEmpty() bool {
	return c == ContactInfo{}
}

// WorkEntry 一段工作经历
type WorkEntry struct {
	Company     string   `json:"company"`
	Position    string   `json:"position"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	Description string   `json:"description"`
	Highlights  []string `json:"highlights"`
	Confidence  float64  `json:"confidence"`
}

// EducationEntry 一段教育经历
type EducationEntry struct {
	Institution  string  `json:"institution"`
	Degree       string  `json:"degree"`
	FieldOfStudy string  `json:"field_of_study,omitempty"`
	StartDate    string  `json:"start_date,omitempty"`
	EndDate      string  `json:"end_date,omitempty"`
	Grade        string  `json:"grade,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// SkillGroup 候选人自己的技能分组，保留原始顺序
type SkillGroup struct {
	Category string   `json:"category"`
	Skills   []string `json:"skills"`
}

// ExtractionMethods 记录每个字段最终由哪种方式产出
type ExtractionMethods struct {
	Contact      ExtractionMethod `json:"contact"`
	WorkHistory  ExtractionMethod `json:"work_history"`
	Education    ExtractionMethod `json:"education"`
	Skills       ExtractionMethod `json:"skills"`
	LLMAvailable bool             `json:"llm_available"`
}

// ParsedCV 完整的结构化简历
type ParsedCV struct {
	Contact           ContactInfo       `json:"contact"`
	WorkHistory       []WorkEntry       `json:"work_history"`
	Education         []EducationEntry  `json:"education"`
	Skills            []SkillGroup      `json:"skills"`
	Certifications    []string          `json:"certifications"`
	Languages         []string          `json:"languages"`
	OtherSections     map[string]string `json:"other_sections"`
	RawText           string            `json:"raw_text"`
	SectionOrder      []string          `json:"section_order"`
	ParseConfidence   float64           `json:"parse_confidence"`
	Warnings          []string          `json:"warnings"`
	ExtractionMethods ExtractionMethods `json:"extraction_methods"`
	ExtractTimeMS     int64             `json:"extract_time_ms,omitempty"`
}
