package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fakehunters/detect_go_server/internal/model"
	"github.com/fakehunters/detect_go_server/internal/pkg/detector"
)

// AggregateOutput 聚合产物，一次性写入持久层
type AggregateOutput struct {
	Result   *model.AnalysisResult
	Votes    []*model.ModelVote
	Findings []*model.ArtifactFinding
	Frames   []*model.FrameSample
}

// 高风险时间段占比阈值
const (
	highRiskRatioHigh   = 0.30
	highRiskRatioMedium = 0.15
)

// BuildAnalysisResult 将检测服务的原始响应聚合为持久化模型
// 纯函数：无 I/O，相同输入产生相同输出，不修改共享状态
func BuildAnalysisResult(analysisID int64, raw *detector.AnalyzeResponse) *AggregateOutput {
	isDeepfake := raw.Verdict == "fake"

	votes := buildVotes(raw)
	findings := buildFindings(raw)
	frames := buildFrames(raw)

	result := &model.AnalysisResult{
		AnalysisID:          analysisID,
		IsDeepfake:          isDeepfake,
		ConfidenceScore:     raw.Confidence,
		EnsembleProbability: ensembleProbability(raw),
		ModelAgreement:      modelAgreement(raw.Verdict, votes),
		RiskLevel:           riskLevel(raw, isDeepfake),
		Summary:             buildSummary(raw.Verdict, raw.Confidence, votes),
		ProcessingTimeMs:    raw.ProcessingTimeMs,
		ModelVersion:        raw.ModelVersion,
		AnalyzedAt:          time.Now(),
	}

	return &AggregateOutput{
		Result:   result,
		Votes:    votes,
		Findings: findings,
		Frames:   frames,
	}
}

// buildVotes 每个子模型产出一条投票，按模型名排序保证确定性
// fake_prob 严格大于 real_prob 才判 fake，相等时判 real（沿用既有比较方式）
func buildVotes(raw *detector.AnalyzeResponse) []*model.ModelVote {
	names := make([]string, 0, len(raw.ModelOutputs))
	for name := range raw.ModelOutputs {
		names = append(names, name)
	}
	sort.Strings(names)

	votes := make([]*model.ModelVote, 0, len(names))
	for _, name := range names {
		output := raw.ModelOutputs[name]

		prediction := "real"
		if output.FakeProb > output.RealProb {
			prediction = "fake"
		}

		confidence := output.RealProb
		if output.FakeProb > confidence {
			confidence = output.FakeProb
		}

		votes = append(votes, &model.ModelVote{
			ModelName:       name,
			Prediction:      prediction,
			Confidence:      confidence,
			FakeProbability: output.FakeProb,
			Patterns:        model.StringArray(output.Patterns),
			FrameIndices:    model.IntArray(output.FlaggedFrames),
		})
	}
	return votes
}

// ensembleProbability 各子模型 fake 概率的均值
func ensembleProbability(raw *detector.AnalyzeResponse) float64 {
	if len(raw.ModelOutputs) == 0 {
		return 0
	}
	var sum float64
	for _, output := range raw.ModelOutputs {
		sum += output.FakeProb
	}
	return sum / float64(len(raw.ModelOutputs))
}

// modelAgreement 投票与总体结论一致的比例，无投票时为 0
func modelAgreement(verdict string, votes []*model.ModelVote) float64 {
	if len(votes) == 0 {
		return 0
	}
	agree := 0
	for _, v := range votes {
		if v.Prediction == verdict {
			agree++
		}
	}
	return float64(agree) / float64(len(votes))
}

// riskLevel 按高风险时间段占比分级，无时间段数据时退回到总体置信度
func riskLevel(raw *detector.AnalyzeResponse, isDeepfake bool) string {
	if len(raw.TimeSegments) > 0 {
		highRisk := 0
		for _, seg := range raw.TimeSegments {
			if seg.Risk == model.RiskHigh {
				highRisk++
			}
		}
		ratio := float64(highRisk) / float64(len(raw.TimeSegments))

		switch {
		case ratio >= highRiskRatioHigh:
			return model.RiskHigh
		case ratio >= highRiskRatioMedium:
			return model.RiskMedium
		default:
			return model.RiskLow
		}
	}

	if isDeepfake {
		if raw.Confidence >= 0.85 {
			return model.RiskHigh
		}
		return model.RiskMedium
	}
	return model.RiskLow
}

func buildSummary(verdict string, confidence float64, votes []*model.ModelVote) string {
	fakeVotes := 0
	for _, v := range votes {
		if v.Prediction == "fake" {
			fakeVotes++
		}
	}

	if verdict == "fake" {
		return fmt.Sprintf("检测到深度伪造特征，置信度 %.1f%%，%d/%d 个模型判定为伪造",
			confidence*100, fakeVotes, len(votes))
	}
	return fmt.Sprintf("未检测到明显伪造特征，置信度 %.1f%%，%d/%d 个模型判定为伪造",
		confidence*100, fakeVotes, len(votes))
}

// buildFindings 按类别归组伪影证据，三个类别各产出一条记录
func buildFindings(raw *detector.AnalyzeResponse) []*model.ArtifactFinding {
	type group struct {
		patterns map[string]struct{}
		sources  map[string]struct{}
	}
	groups := map[string]*group{
		model.CategorySpatial:    {patterns: map[string]struct{}{}, sources: map[string]struct{}{}},
		model.CategoryTemporal:   {patterns: map[string]struct{}{}, sources: map[string]struct{}{}},
		model.CategoryStructural: {patterns: map[string]struct{}{}, sources: map[string]struct{}{}},
	}

	names := make([]string, 0, len(raw.ModelOutputs))
	for name := range raw.ModelOutputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, pattern := range raw.ModelOutputs[name].Patterns {
			category := categorizePattern(pattern)
			groups[category].patterns[pattern] = struct{}{}
			groups[category].sources[name] = struct{}{}
		}
	}

	findings := make([]*model.ArtifactFinding, 0, 3)
	for _, category := range []string{model.CategorySpatial, model.CategoryTemporal, model.CategoryStructural} {
		g := groups[category]
		findings = append(findings, &model.ArtifactFinding{
			Category:        category,
			Detected:        len(g.patterns) > 0,
			Patterns:        model.StringArray(sortedKeys(g.patterns)),
			EvidenceSources: model.StringArray(sortedKeys(g.sources)),
		})
	}
	return findings
}

// categorizePattern 按模式名关键词归类，未命中时归为 spatial
func categorizePattern(pattern string) string {
	p := strings.ToLower(pattern)

	temporalKeywords := []string{"temporal", "flicker", "motion", "sync", "discontinuity", "jitter"}
	for _, kw := range temporalKeywords {
		if strings.Contains(p, kw) {
			return model.CategoryTemporal
		}
	}

	structuralKeywords := []string{"compression", "codec", "metadata", "container", "bitrate", "encoding"}
	for _, kw := range structuralKeywords {
		if strings.Contains(p, kw) {
			return model.CategoryStructural
		}
	}

	return model.CategorySpatial
}

func buildFrames(raw *detector.AnalyzeResponse) []*model.FrameSample {
	if len(raw.Frames) == 0 {
		return nil
	}

	frames := make([]*model.FrameSample, 0, len(raw.Frames))
	for _, f := range raw.Frames {
		frames = append(frames, &model.FrameSample{
			FrameNumber:      f.FrameNumber,
			TimestampSeconds: f.Timestamp,
			IsDeepfake:       f.Verdict == "fake",
			ConfidenceScore:  f.Confidence,
			AnomalyType:      f.AnomalyType,
			Features:         string(f.Features),
		})
	}
	return frames
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
