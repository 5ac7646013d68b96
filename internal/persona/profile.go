package persona

import "strings"

// Profile is a dynamic character sheet supplied by the game client at
// conversation creation. It lets level designers define characters in the
// editor without a backend change. Empty fields are omitted from the rendered
// instruction.
type Profile struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Gender          string   `json:"gender,omitempty" yaml:"gender,omitempty"`
	Nationality     string   `json:"nationality,omitempty" yaml:"nationality,omitempty"`
	Personality     string   `json:"personality,omitempty" yaml:"personality,omitempty"`
	PersonalityType string   `json:"personality_type,omitempty" yaml:"personality_type,omitempty"`
	Interests       string   `json:"interests,omitempty" yaml:"interests,omitempty"`
	SpeakingStyle   string   `json:"speaking_style,omitempty" yaml:"speaking_style,omitempty"`
	Likes           []string `json:"likes,omitempty" yaml:"likes,omitempty"`
	Dislikes        []string `json:"dislikes,omitempty" yaml:"dislikes,omitempty"`
	CurrentState    string   `json:"current_state,omitempty" yaml:"current_state,omitempty"`
	LocationHint    string   `json:"location_hint,omitempty" yaml:"location_hint,omitempty"`

	// Event context ties the character to an in-game event the conversation is
	// about (a dinner, a festival, …).
	EventTitle       string   `json:"event_title,omitempty" yaml:"event_title,omitempty"`
	EventDescription string   `json:"event_description,omitempty" yaml:"event_description,omitempty"`
	EventTopics      []string `json:"event_topics,omitempty" yaml:"event_topics,omitempty"`
	RequiredTopics   []string `json:"required_topics,omitempty" yaml:"required_topics,omitempty"`
}

// Recognised gender and personality-type values. Unrecognised values are
// passed through verbatim so clients can use free-form text.
var genderText = map[string]string{
	"Male":       "男性",
	"Female":     "女性",
	"Non-binary": "非二元性别",
	"Other":      "其他性别",
}

var personalityTypeText = map[string]string{
	"Extrovert": "外向热情",
	"Introvert": "内向文静",
	"Ambivert":  "中立平衡",
}

// Instruction renders the profile into a system instruction for the LLM.
func (p Profile) Instruction() string {
	gender := p.Gender
	if gender == "" {
		gender = "Male"
	}
	gt, ok := genderText[gender]
	if !ok {
		gt = gender
	}

	ptype := p.PersonalityType
	if ptype == "" {
		ptype = "Extrovert"
	}
	ptt, ok := personalityTypeText[ptype]
	if !ok {
		ptt = ptype
	}

	var b strings.Builder
	if p.Nationality != "" {
		b.WriteString("你是 **" + p.Name + "**，来自" + p.Nationality + "，" + gt + "。\n\n")
	} else {
		b.WriteString("你是 **" + p.Name + "**，" + gt + "。\n\n")
	}

	switch gender {
	case "Male":
		b.WriteString("你是男性角色，请用男性的口吻说话。\n")
	case "Female":
		b.WriteString("你是女性角色，请用女性的口吻说话。\n")
	}

	if p.Personality != "" {
		b.WriteString("\n**性格**：" + p.Personality + "\n")
	} else {
		b.WriteString("\n**性格类型**：" + ptt + "\n")
	}
	if p.Interests != "" {
		b.WriteString("**兴趣爱好**：" + p.Interests + "\n")
	}
	if p.SpeakingStyle != "" {
		b.WriteString("**说话风格**：" + p.SpeakingStyle + "\n")
	}
	if len(p.Likes) > 0 {
		b.WriteString("**喜好**：" + strings.Join(p.Likes, ", ") + "\n")
	}
	if len(p.Dislikes) > 0 {
		b.WriteString("**不喜欢**：" + strings.Join(p.Dislikes, ", ") + "\n")
	}
	if p.CurrentState != "" {
		b.WriteString("\n**当前状态**：" + p.CurrentState + "\n")
	}
	if p.LocationHint != "" {
		b.WriteString("**当前位置**：" + p.LocationHint + "\n")
	}

	if p.EventTitle != "" || p.EventDescription != "" || len(p.EventTopics) > 0 {
		b.WriteString("\n【当前事件】\n")
		if p.EventTitle != "" {
			b.WriteString("**事件**：" + p.EventTitle + "\n")
		}
		if p.EventDescription != "" {
			b.WriteString("**事件描述**：" + p.EventDescription + "\n")
		}
		if len(p.EventTopics) > 0 {
			b.WriteString("**可以聊的话题**：" + strings.Join(p.EventTopics, ", ") + "\n")
		}
		if len(p.RequiredTopics) > 0 {
			b.WriteString("**必须覆盖的话题**：" + strings.Join(p.RequiredTopics, ", ") + "\n")
		}
	}

	b.WriteString("\n请严格按照上述角色设定进行对话。")
	return b.String()
}

// Persona converts the profile into a full [Persona] so it can join a
// registry alongside the built-ins for the lifetime of one conversation.
func (p Profile) Persona() Persona {
	return Persona{
		ID:          strings.ToLower(strings.TrimSpace(p.ID)),
		Name:        p.Name,
		Instruction: p.Instruction(),
	}
}
