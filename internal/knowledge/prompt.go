package knowledge

// LLM prompt templates, data only.

const systemPrompt = "你是一个专业的知识分析师，擅长从大量内容中提炼有价值的知识和洞察。"

// analystPrompt asks for the knowledge JSON.
// Args: transcript count, sample count.
const analystPrompt = `你是一个专业的知识分析师。请从以下内容创作者的转录文本中提炼有价值的知识。

输入内容：%d 个创作者的转录文本。

请按以下结构输出JSON：

{
  "topics": [
    {
      "name": "话题名称",
      "description": "话题描述",
      "key_points": ["要点1", "要点2", "要点3"],
      "creators": ["创作者A", "创作者B"],
      "insights": ["洞察1", "洞察2"]
    }
  ],
  "summary": "整体总结",
  "trends": ["趋势1", "趋势2"],
  "recommendations": ["建议1", "建议2"]
}

转录文本样例（前%d个）：
`

// sampleBlock is appended once per sampled transcript.
// Args: creator directory, truncated transcript.
const sampleBlock = "\n\n--- %s ---\n%s..."

// reportTemplate renders the markdown report.
// Args: generation time, transcript count, model answer.
const reportTemplate = `# Cortex 知识报告

**生成时间**: %s
**分析内容**: %d 个转录文本

---

## 知识内容

%s

---

*由 Cortex 自动生成*
`
