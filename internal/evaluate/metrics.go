// Package evaluate scores consensus predictions against observed labels.
package evaluate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	poolerrors "github.com/molpool/molpool/internal/errors"
)

// ClassificationReport holds the headline binary classification metrics.
type ClassificationReport struct {
	Task      string    `json:"task"`
	ROCAUC    float64   `json:"roc_auc_score"`
	Precision float64   `json:"precision_score"`
	Recall    float64   `json:"recall_score"`
	TP        int       `json:"tp"`
	TN        int       `json:"tn"`
	FP        int       `json:"fp"`
	FN        int       `json:"fn"`
	YTrue     []int     `json:"y_true"`
	YPred     []float64 `json:"y_pred"`
	BPred     []int     `json:"b_pred"`
}

// RegressionReport holds the headline regression metrics.
type RegressionReport struct {
	Task  string    `json:"task"`
	R2    float64   `json:"r2_score"`
	MAE   float64   `json:"mean_absolute_error"`
	MSE   float64   `json:"mean_squared_error"`
	YTrue []float64 `json:"y_true"`
	YPred []float64 `json:"y_pred"`
}

// Classification scores continuous predictions yPred and binarized
// decisions bPred against 0/1 labels yTrue.
func Classification(yTrue []int, yPred []float64, bPred []int) (*ClassificationReport, error) {
	n := len(yTrue)
	if n == 0 {
		return nil, poolerrors.MetricComputation("classification", "empty input")
	}
	if len(yPred) != n || len(bPred) != n {
		return nil, poolerrors.MetricComputation("classification",
			fmt.Sprintf("length mismatch: %d labels, %d scores, %d decisions", n, len(yPred), len(bPred)))
	}
	if err := checkBinary("y_true", yTrue); err != nil {
		return nil, err
	}
	if err := checkBinary("b_pred", bPred); err != nil {
		return nil, err
	}
	if err := checkFinite("roc_auc_score", yPred); err != nil {
		return nil, err
	}

	r := &ClassificationReport{
		YTrue: append([]int(nil), yTrue...),
		YPred: append([]float64(nil), yPred...),
		BPred: append([]int(nil), bPred...),
	}
	r.TP, r.TN, r.FP, r.FN = confusion(yTrue, bPred)

	auc, err := rocAUC(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	r.ROCAUC = auc

	if r.TP+r.FP == 0 {
		return nil, poolerrors.MetricComputation("precision_score", "no predicted positives")
	}
	r.Precision = float64(r.TP) / float64(r.TP+r.FP)

	if r.TP+r.FN == 0 {
		return nil, poolerrors.MetricComputation("recall_score", "no actual positives")
	}
	r.Recall = float64(r.TP) / float64(r.TP+r.FN)

	return r, nil
}

// confusion counts outcomes with label order [0, 1].
func confusion(yTrue, bPred []int) (tp, tn, fp, fn int) {
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && bPred[i] == 1:
			tp++
		case yTrue[i] == 0 && bPred[i] == 0:
			tn++
		case yTrue[i] == 0 && bPred[i] == 1:
			fp++
		default:
			fn++
		}
	}
	return tp, tn, fp, fn
}

// rocAUC integrates the ROC curve with the trapezoidal rule.
func rocAUC(yTrue []int, yPred []float64) (float64, error) {
	pos := 0
	for _, v := range yTrue {
		pos += v
	}
	if pos == 0 || pos == len(yTrue) {
		return 0, poolerrors.MetricComputation("roc_auc_score", "only one class present in y_true")
	}

	y := append([]float64(nil), yPred...)
	classes := make([]bool, len(yTrue))
	for i, v := range yTrue {
		classes[i] = v == 1
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// Regression scores continuous predictions against continuous labels.
func Regression(yTrue, yPred []float64) (*RegressionReport, error) {
	n := len(yTrue)
	if n == 0 {
		return nil, poolerrors.MetricComputation("regression", "empty input")
	}
	if len(yPred) != n {
		return nil, poolerrors.MetricComputation("regression",
			fmt.Sprintf("length mismatch: %d labels, %d predictions", n, len(yPred)))
	}
	if err := checkFinite("y_true", yTrue); err != nil {
		return nil, err
	}
	if err := checkFinite("y_pred", yPred); err != nil {
		return nil, err
	}

	resid := make([]float64, n)
	floats.SubTo(resid, yTrue, yPred)

	r := &RegressionReport{
		MSE:   floats.Dot(resid, resid) / float64(n),
		MAE:   floats.Norm(resid, 1) / float64(n),
		YTrue: append([]float64(nil), yTrue...),
		YPred: append([]float64(nil), yPred...),
	}

	mean := stat.Mean(yTrue, nil)
	ssTot := 0.0
	for _, v := range yTrue {
		ssTot += (v - mean) * (v - mean)
	}
	switch {
	case ssTot > 0:
		r.R2 = stat.RSquaredFrom(yPred, yTrue, nil)
	case r.MSE == 0:
		r.R2 = 1
	default:
		return nil, poolerrors.MetricComputation("r2_score", "constant y_true with non-zero residual")
	}
	return r, nil
}

func checkBinary(name string, v []int) error {
	for i, x := range v {
		if x != 0 && x != 1 {
			return poolerrors.MetricComputation(name, fmt.Sprintf("non-binary value %d at row %d", x, i))
		}
	}
	return nil
}

func checkFinite(name string, v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return poolerrors.MetricComputation(name, fmt.Sprintf("non-finite value at row %d", i))
		}
	}
	return nil
}
