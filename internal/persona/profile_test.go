package persona

import (
	"strings"
	"testing"
)

func TestProfileInstruction(t *testing.T) {
	t.Parallel()

	t.Run("full sheet", func(t *testing.T) {
		t.Parallel()
		p := Profile{
			ID:               "kaisa",
			Name:             "Kaisa",
			Gender:           "Female",
			Nationality:      "芬兰",
			Personality:      "开朗但容易紧张",
			Interests:        "烘焙、滑雪",
			SpeakingStyle:    "语速快，喜欢用感叹号",
			Likes:            []string{"黑麦面包", "桑拿"},
			Dislikes:         []string{"迟到"},
			CurrentState:     "正在准备甜点",
			LocationHint:     "活动室厨房",
			EventTitle:       "今晚聚餐",
			EventDescription: "学生活动室的国际晚餐",
			EventTopics:      []string{"人数", "菜单"},
			RequiredTopics:   []string{"饮食禁忌"},
		}

		got := p.Instruction()
		for _, want := range []string{
			"你是 **Kaisa**，来自芬兰，女性。",
			"请用女性的口吻说话",
			"**性格**：开朗但容易紧张",
			"**兴趣爱好**：烘焙、滑雪",
			"**说话风格**：语速快，喜欢用感叹号",
			"**喜好**：黑麦面包, 桑拿",
			"**不喜欢**：迟到",
			"**当前状态**：正在准备甜点",
			"**当前位置**：活动室厨房",
			"**事件**：今晚聚餐",
			"**事件描述**：学生活动室的国际晚餐",
			"**可以聊的话题**：人数, 菜单",
			"**必须覆盖的话题**：饮食禁忌",
			"请严格按照上述角色设定进行对话。",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("instruction missing %q", want)
			}
		}
	})

	t.Run("defaults fill gender and personality type", func(t *testing.T) {
		t.Parallel()
		got := Profile{ID: "x", Name: "X"}.Instruction()
		if !strings.Contains(got, "你是 **X**，男性。") {
			t.Errorf("missing default gender, got %q", got)
		}
		if !strings.Contains(got, "**性格类型**：外向热情") {
			t.Errorf("missing default personality type, got %q", got)
		}
	})

	t.Run("personality overrides personality type", func(t *testing.T) {
		t.Parallel()
		got := Profile{ID: "x", Name: "X", Personality: "沉默寡言", PersonalityType: "Introvert"}.Instruction()
		if !strings.Contains(got, "**性格**：沉默寡言") {
			t.Errorf("missing personality, got %q", got)
		}
		if strings.Contains(got, "**性格类型**") {
			t.Errorf("personality type should be omitted, got %q", got)
		}
	})

	t.Run("unknown values pass through", func(t *testing.T) {
		t.Parallel()
		got := Profile{ID: "x", Name: "X", Gender: "Robot"}.Instruction()
		if !strings.Contains(got, "你是 **X**，Robot。") {
			t.Errorf("got %q", got)
		}
	})
}

func TestProfilePersona(t *testing.T) {
	t.Parallel()

	p := Profile{ID: " Kaisa ", Name: "Kaisa"}.Persona()
	if p.ID != "kaisa" {
		t.Fatalf("ID = %q, want normalised lowercase", p.ID)
	}
	if p.Instruction == "" {
		t.Fatal("instruction should be rendered")
	}
}
