package dnsthreat

import (
	"fmt"

	"github.com/activecm/threatfuse/pkg/finding"
	"github.com/activecm/threatfuse/pkg/mitre"
	"github.com/activecm/threatfuse/util"
)

type (
	//DGAComponents are the 0-1 sub scores of a DGA finding
	DGAComponents struct {
		Entropy        float64 `json:"entropy" bson:"entropy"`
		Bigram         float64 `json:"bigram" bson:"bigram"`
		ConsonantVowel float64 `json:"consonant_vowel" bson:"consonant_vowel"`
		Digit          float64 `json:"digit" bson:"digit"`
		NoWords        float64 `json:"no_words" bson:"no_words"`
		TLD            float64 `json:"tld" bson:"tld"`
		NX             float64 `json:"nx" bson:"nx"`
	}

	//DGAFinding marks a queried domain whose name looks machine generated
	DGAFinding struct {
		common              `bson:",inline"`
		Label               string        `json:"label" bson:"label"`
		QueryCount          int           `json:"query_count" bson:"query_count"`
		Entropy             float64       `json:"entropy" bson:"entropy"`
		BigramFrequency     float64       `json:"bigram_frequency" bson:"bigram_frequency"`
		ConsonantVowelRatio float64       `json:"consonant_vowel_ratio" bson:"consonant_vowel_ratio"`
		DigitRatio          float64       `json:"digit_ratio" bson:"digit_ratio"`
		RecognizableWord    string        `json:"recognizable_word,omitempty" bson:"recognizable_word,omitempty"`
		NXRatio             float64       `json:"nx_ratio" bson:"nx_ratio"`
		Components          DGAComponents `json:"components" bson:"components"`
	}
)

// Variant implements Finding
func (f *DGAFinding) Variant() Variant { return VariantDGA }

// Kind implements finding.Evidence
func (f *DGAFinding) Kind() string { return string(VariantDGA) }

// Describe implements finding.Evidence
func (f *DGAFinding) Describe() string {
	return describe(VariantDGA, f.DomainName, f.SrcIP, f.TotalScore)
}

// dga groups queries by source and full name and scores the lexical
// features of the label left of the public suffix
func (d *Detector) dga(queries []query) []*DGAFinding {
	groups := make(map[pairKey][]*query)
	for i := range queries {
		q := &queries[i]
		if !q.parts.ok || len(q.parts.Label) < d.conf.MinDGALength {
			continue
		}
		key := pairKey{q.src, q.name}
		groups[key] = append(groups[key], q)
	}

	var results []*DGAFinding
	for key, group := range groups {
		f := scoreDGA(key, group)
		if f.TotalScore < d.conf.MinDGAScore {
			continue
		}
		results = append(results, f)
	}
	sortFindings(results)
	return results
}

func scoreDGA(key pairKey, group []*query) *DGAFinding {
	parts := group[0].parts
	label := parts.Label

	nx := 0
	for _, q := range group {
		if q.nx {
			nx++
		}
	}

	f := &DGAFinding{
		common:              common{DomainName: key.domain, SrcIP: key.src},
		Label:               label,
		QueryCount:          len(group),
		Entropy:             util.ShannonEntropy(label),
		BigramFrequency:     bigramFrequency(label),
		ConsonantVowelRatio: consonantVowelRatio(label),
		DigitRatio:          digitRatio(label),
		RecognizableWord:    recognizableWord(label),
		NXRatio:             float64(nx) / float64(len(group)),
	}

	comps := DGAComponents{
		Entropy:        normalizedEntropy(label),
		Bigram:         1 - util.Clamp01(f.BigramFrequency/englishBigramScale),
		ConsonantVowel: util.Clamp01((f.ConsonantVowelRatio - 1.5) / 3.5),
		Digit:          util.Clamp01(f.DigitRatio / 0.3),
		TLD:            tldRisk(parts.Suffix),
		NX:             f.NXRatio,
	}
	if f.RecognizableWord == "" {
		comps.NoWords = 1
	}
	f.Components = comps

	f.SetScore(100 * (0.25*comps.Entropy +
		0.25*comps.Bigram +
		0.15*comps.ConsonantVowel +
		0.10*comps.Digit +
		0.10*comps.NoWords +
		0.10*comps.TLD +
		0.05*comps.NX))
	f.SetConfidence(0.4 + 0.3*comps.Bigram + 0.2*comps.Entropy + 0.1*comps.NX)
	for _, q := range group {
		f.Observe(q.ts)
	}

	ids := finding.NewTechniqueSet(mitre.DomainGenerationAlgorithm)
	if f.TotalScore >= 80 {
		ids.Add(mitre.DynamicResolution)
	}
	f.SetTechniques(ids)

	f.AddReason(fmt.Sprintf("label %q has entropy %.2f bits and English bigram frequency %.2f%%",
		label, f.Entropy, f.BigramFrequency))
	if comps.ConsonantVowel > 0 {
		f.AddReason(fmt.Sprintf("consonant to vowel ratio %.1f", f.ConsonantVowelRatio))
	}
	if f.DigitRatio > 0 {
		f.AddReason(fmt.Sprintf("%.0f%% digits", f.DigitRatio*100))
	}
	if comps.TLD >= 1 {
		f.AddReason(fmt.Sprintf("high risk TLD .%s", parts.Suffix))
	}
	if nx > 0 {
		f.AddReason(fmt.Sprintf("%d of %d queries returned NXDOMAIN", nx, len(group)))
	}
	return f
}
