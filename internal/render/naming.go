package render

import "fmt"

// ClusterFileName names the canvas of one cluster.
func ClusterFileName(clusterID, minCluster int, granularity string, cellSize int) string {
	return fmt.Sprintf("%d_moreThan%d_%sColumns_%dPixels.png", clusterID, minCluster, granularity, cellSize)
}

// AllFileName names the canvas holding every cluster.
func AllFileName(minCluster int, granularity string, cellSize int) string {
	return fmt.Sprintf("all_moreThan%d_%sColumns_%dPixels.png", minCluster, granularity, cellSize)
}

// HalvesFileName names the weekly half-photograph timeline.
func HalvesFileName(factor int) string {
	return fmt.Sprintf("images_divided_by_%d.jpg", factor)
}
