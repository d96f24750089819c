package llm

// 大模型输出结构。可选字段为空字符串表示未提供。
// 每个结构都提供 SchemaDescription，追加在系统提示之后告诉模型 JSON 的形状。

// WorkEntry 单条工作经历
type WorkEntry struct {
	Company     string   `json:"company"`
	Position    string   `json:"position"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	Description string   `json:"description,omitempty"`
	Highlights  []string `json:"highlights,omitempty"`
}

// WorkHistory 工作经历，最近的在前
type WorkHistory struct {
	Entries []WorkEntry `json:"entries"`
}

// EducationEntry 单条教育经历
type EducationEntry struct {
	Institution  string `json:"institution"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	Grade        string `json:"grade,omitempty"`
}

// Education 教育经历
type Education struct {
	Entries []EducationEntry `json:"entries"`
}

// SkillGroup 候选人自己的技能分组
type SkillGroup struct {
	Category string   `json:"category"`
	Skills   []string `json:"skills"`
}

// Skills 技能分组，保持候选人的分类和顺序
type Skills struct {
	Groups []SkillGroup `json:"groups"`
}

// Contact 联系方式
type Contact struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	GitHub    string `json:"github,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
}

// FullExtraction 一次调用提取全部字段
type FullExtraction struct {
	Contact     Contact          `json:"contact"`
	WorkHistory []WorkEntry      `json:"work_history"`
	Education   []EducationEntry `json:"education"`
	Skills      []SkillGroup     `json:"skills"`
}

// IsEmpty 四个字段都没有内容
func (f FullExtraction) IsEmpty() bool {
	return f.Contact == (Contact{}) && len(f.WorkHistory) == 0 && len(f.Education) == 0 && len(f.Skills) == 0
}

// schemaDescriber 能描述自身 JSON 形状的输出结构
type schemaDescriber interface {
	SchemaDescription() string
}

const workEntryShape = `{"company": "string", "position": "string", "start_date": "string (optional)", "end_date": "string or Present (optional)", "description": "string", "highlights": ["string"]}`

const educationEntryShape = `{"institution": "string", "degree": "string", "field_of_study": "string (optional)", "start_date": "string (optional)", "end_date": "string (optional)", "grade": "string (optional)"}`

const skillGroupShape = `{"category": "string", "skills": ["string"]}`

const contactShape = `{"name": "string", "email": "string", "phone": "string", "address": "string", "linkedin": "string", "github": "string", "portfolio": "string"}`

// SchemaDescription 实现 schemaDescriber
func (WorkHistory) SchemaDescription() string {
	return `{"entries": [` + workEntryShape + `]}`
}

// SchemaDescription 实现 schemaDescriber
func (Education) SchemaDescription() string {
	return `{"entries": [` + educationEntryShape + `]}`
}

// SchemaDescription 实现 schemaDescriber
func (Skills) SchemaDescription() string {
	return `{"groups": [` + skillGroupShape + `]}`
}

// SchemaDescription 实现 schemaDescriber
func (Contact) SchemaDescription() string {
	return contactShape
}

// SchemaDescription 实现 schemaDescriber
func (FullExtraction) SchemaDescription() string {
	return `{"contact": ` + contactShape +
		`, "work_history": [` + workEntryShape +
		`], "education": [` + educationEntryShape +
		`], "skills": [` + skillGroupShape + `]}`
}
